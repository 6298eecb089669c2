package timetabling

import (
	"github.com/openfroyo/scorekeeper/pkg/domain"
	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Dataset is the serialised form of a timetable.
type Dataset struct {
	Timeslots []TimeslotRecord `json:"timeslots" validate:"dive"`
	Rooms     []RoomRecord     `json:"rooms" validate:"dive"`
	Lessons   []LessonRecord   `json:"lessons" validate:"dive"`
}

// TimeslotRecord is a serialised Timeslot.
type TimeslotRecord struct {
	ID        string `json:"id" validate:"required"`
	DayOfWeek string `json:"dayOfWeek" validate:"required"`
	Start     Clock  `json:"startTime"`
	End       Clock  `json:"endTime" validate:"gtfield=Start"`
}

// RoomRecord is a serialised Room.
type RoomRecord struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// LessonRecord is a serialised Lesson. Timeslot and Room hold IDs and may be
// empty for an unscheduled lesson.
type LessonRecord struct {
	ID           string `json:"id" validate:"required"`
	Subject      string `json:"subject" validate:"required"`
	Teacher      string `json:"teacher" validate:"required"`
	StudentGroup string `json:"studentGroup" validate:"required"`
	Timeslot     string `json:"timeslot,omitempty"`
	Room         string `json:"room,omitempty"`
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
	facts := make([]engine.Fact, 0, len(ds.Timeslots)+len(ds.Rooms)+len(ds.Lessons))

	timeslots := make(map[string]*Timeslot, len(ds.Timeslots))
	for _, r := range ds.Timeslots {
		day, err := ParseWeekday(r.DayOfWeek)
		if err != nil {
			return nil, err
		}
		t := &Timeslot{ID: r.ID, DayOfWeek: day, Start: r.Start, End: r.End}
		timeslots[r.ID] = t
		facts = append(facts, t)
	}

	rooms := make(map[string]*Room, len(ds.Rooms))
	for _, r := range ds.Rooms {
		room := &Room{ID: r.ID, Name: r.Name}
		rooms[r.ID] = room
		facts = append(facts, room)
	}

	for _, r := range ds.Lessons {
		l := &Lesson{
			ID:           r.ID,
			Subject:      r.Subject,
			Teacher:      r.Teacher,
			StudentGroup: r.StudentGroup,
		}
		if r.Timeslot != "" {
			t, ok := timeslots[r.Timeslot]
			if !ok {
				return nil, &domain.UnknownReferenceError{Kind: "timeslot", ID: r.Timeslot, Owner: "lesson " + r.ID}
			}
			l.Timeslot = t
		}
		if r.Room != "" {
			room, ok := rooms[r.Room]
			if !ok {
				return nil, &domain.UnknownReferenceError{Kind: "room", ID: r.Room, Owner: "lesson " + r.ID}
			}
			l.Room = room
		}
		facts = append(facts, l)
	}
	return facts, nil
}
