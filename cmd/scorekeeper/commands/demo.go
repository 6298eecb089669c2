package commands

import (
	"encoding/json"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/scorekeeper/pkg/domain/routing"
)

func newDemoCommand() *cobra.Command {
	b := routing.DefaultDemo

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Generate a vehicle routing dataset",
		Long: `Generate a reproducible random vehicle routing dataset.

Depots and customers are placed uniformly inside a bounding box, vehicles
start from a random depot, and customers are handed out to vehicles round
robin, so the dataset can be scored as is. The same seed always yields the
same dataset.`,
		Example: `  # Write the default demo dataset
  scorekeeper demo > routes.json

  # A larger dataset as YAML, scored right away
  scorekeeper demo --customers 200 --vehicles 12 --seed 7 -o yaml > routes.yaml
  scorekeeper score --problem vehicle-routing routes.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := b.Build()
			if err != nil {
				return err
			}
			log.Debug().
				Int("depots", len(ds.Depots)).
				Int("vehicles", len(ds.Vehicles)).
				Int("customers", len(ds.Customers)).
				Uint64("seed", b.Seed).
				Msg("Demo dataset generated")

			return render(cmd.OutOrStdout(), ds, func(w io.Writer) error {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(ds)
			})
		},
	}

	cmd.Flags().Uint64Var(&b.Seed, "seed", b.Seed, "random seed")
	cmd.Flags().IntVar(&b.CustomerCount, "customers", b.CustomerCount, "number of customers")
	cmd.Flags().IntVar(&b.VehicleCount, "vehicles", b.VehicleCount, "number of vehicles")
	cmd.Flags().IntVar(&b.DepotCount, "depots", b.DepotCount, "number of depots")
	cmd.Flags().Int64Var(&b.VehicleCapacity, "capacity", b.VehicleCapacity, "capacity of every vehicle")
	cmd.Flags().Int64Var(&b.MinDemand, "min-demand", b.MinDemand, "minimum customer demand")
	cmd.Flags().Int64Var(&b.MaxDemand, "max-demand", b.MaxDemand, "maximum customer demand")

	return cmd
}
