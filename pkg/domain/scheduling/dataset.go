package scheduling

import (
	"time"

	"github.com/openfroyo/scorekeeper/pkg/domain"
	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Dataset is the serialised form of a schedule.
type Dataset struct {
	Employees      []EmployeeRecord     `json:"employees" validate:"dive"`
	Shifts         []ShiftRecord        `json:"shifts" validate:"dive"`
	Availabilities []AvailabilityRecord `json:"availabilities,omitempty" validate:"dive"`
}

// EmployeeRecord is a serialised Employee.
type EmployeeRecord struct {
	Name   string   `json:"name" validate:"required"`
	Skills []string `json:"skills,omitempty"`
}

// ShiftRecord is a serialised Shift. Employee names the assigned employee and
// may be empty.
type ShiftRecord struct {
	ID            string    `json:"id" validate:"required"`
	Start         time.Time `json:"start" validate:"required"`
	End           time.Time `json:"end" validate:"required,gtfield=Start"`
	Location      string    `json:"location,omitempty"`
	RequiredSkill string    `json:"requiredSkill,omitempty"`
	Employee      string    `json:"employee,omitempty"`
}

// AvailabilityRecord is a serialised Availability.
type AvailabilityRecord struct {
	ID       string `json:"id,omitempty"`
	Employee string `json:"employee" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Type     string `json:"type" validate:"required,oneof=DESIRED UNDESIRED UNAVAILABLE"`
}

// DecodeFacts decodes a JSON dataset into facts.
func DecodeFacts(data []byte) ([]engine.Fact, error) {
	var ds Dataset
	if err := domain.DecodeDataset(data, &ds); err != nil {
		return nil, err
	}
	return ds.Facts()
}

// Facts resolves the dataset's references and returns its facts.
func (ds *Dataset) Facts() ([]engine.Fact, error) {
	facts := make([]engine.Fact, 0, len(ds.Employees)+len(ds.Shifts)+len(ds.Availabilities))
	employees := make(map[string]*Employee, len(ds.Employees))

	for _, r := range ds.Employees {
		e := &Employee{Name: r.Name, Skills: r.Skills}
		employees[r.Name] = e
		facts = append(facts, e)
	}

	for _, r := range ds.Shifts {
		s := &Shift{
			ID:            r.ID,
			Start:         r.Start,
			End:           r.End,
			Location:      r.Location,
			RequiredSkill: r.RequiredSkill,
		}
		if r.Employee != "" {
			e, ok := employees[r.Employee]
			if !ok {
				return nil, &domain.UnknownReferenceError{Kind: "employee", ID: r.Employee, Owner: "shift " + r.ID}
			}
			s.Employee = e
		}
		facts = append(facts, s)
	}

	for _, r := range ds.Availabilities {
		e, ok := employees[r.Employee]
		if !ok {
			return nil, &domain.UnknownReferenceError{Kind: "employee", ID: r.Employee, Owner: "availability " + r.ID}
		}
		date, err := ParseDate(r.Date)
		if err != nil {
			return nil, err
		}
		facts = append(facts, &Availability{
			ID:       r.ID,
			Employee: e,
			Date:     date,
			Type:     AvailabilityType(r.Type),
		})
	}
	return facts, nil
}
