package viewer

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/geo"
)

// Renderer is what the sequencer draws on. The terminal implementation
// below just narrates; a graphical frontend would plug in here.
type Renderer interface {
	// ShowPoint displays a press location with no arc.
	ShowPoint(p geo.Coordinates)
	// ShowArc starts an arc animation from the previous point to the
	// new one. Altitude is a unitless height factor; duration is how
	// long the animation plays.
	ShowArc(from, to geo.Coordinates, altitude float64, duration time.Duration)
	// ClearArc removes the in-flight arc and its source point.
	ClearArc()
	// PointOfView moves the camera to the given location.
	PointOfView(p geo.Coordinates)
}

// TerminalRenderer logs render calls for the headless viewer binary.
type TerminalRenderer struct{}

func (TerminalRenderer) ShowPoint(p geo.Coordinates) {
	log.Info().
		Float64("lat", p.Lat).
		Float64("lon", p.Lon).
		Msg("press point")
}

func (TerminalRenderer) ShowArc(from, to geo.Coordinates, altitude float64, duration time.Duration) {
	log.Info().
		Float64("from_lat", from.Lat).
		Float64("from_lon", from.Lon).
		Float64("to_lat", to.Lat).
		Float64("to_lon", to.Lon).
		Float64("altitude", altitude).
		Dur("duration", duration).
		Msg("press arc")
}

func (TerminalRenderer) ClearArc() {
	log.Debug().Msg("arc cleared")
}

func (TerminalRenderer) PointOfView(p geo.Coordinates) {
	log.Debug().
		Float64("lat", p.Lat).
		Float64("lon", p.Lon).
		Msg("camera moved")
}
