package server

import (
	"context"
	"log/slog"

	"github.com/playperu/citywalk/internal/citywalk"
)

// Catalogue is the part of the progress service SeedDemo needs.
type Catalogue interface {
	Paths(ctx context.Context) ([]citywalk.PathSummary, error)
	CreatePath(ctx context.Context, p citywalk.Path) (citywalk.Path, error)
}

// DemoPath is a short walk through Lima's historic centre.
func DemoPath() citywalk.Path {
	return citywalk.Path{
		ID:          "lima-centro",
		Name:        "Lima Centro Histórico",
		City:        "Lima",
		Description: "From the Plaza Mayor to the San Francisco catacombs.",
		Stops: []citywalk.Stop{
			{
				PointID:      "lima-plaza-mayor",
				Title:        "Plaza Mayor",
				Lat:          -12.04637,
				Lng:          -77.03066,
				RadiusMeters: 40,
				Narration:    "Pizarro laid out the city's first square here in 1535.",
				AudioRef:     "audio/lima/plaza-mayor.mp3",
				CharacterRef: "guide/inti",
				Reward:       &citywalk.Reward{Label: "Sol de Oro", IconRef: "icons/sol.png"},
			},
			{
				PointID:   "lima-casa-aliaga",
				Title:     "Casa de Aliaga",
				Lat:       -12.04560,
				Lng:       -77.03040,
				Narration: "The oldest house in the Americas still held by one family.",
				AudioRef:  "audio/lima/casa-aliaga.mp3",
			},
			{
				PointID:      "lima-san-francisco",
				Title:        "Convento de San Francisco",
				Lat:          -12.04525,
				Lng:          -77.02750,
				RadiusMeters: 60,
				Narration:    "Below the church lie catacombs that once served as the city's cemetery.",
				AudioRef:     "audio/lima/san-francisco.mp3",
				CharacterRef: "guide/inti",
				Reward:       &citywalk.Reward{Label: "Llave de las Catacumbas", IconRef: "icons/llave.png"},
			},
		},
	}
}

// SeedDemo creates the demo path if the catalogue is empty.
// Idempotent: does nothing if paths already exist.
func SeedDemo(ctx context.Context, logger *slog.Logger, cat Catalogue) error {
	existing, err := cat.Paths(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	p, err := cat.CreatePath(ctx, DemoPath())
	if err != nil {
		return err
	}

	logger.Info("demo path seeded", "path_id", p.ID, "stops", p.TotalStops)
	return nil
}
