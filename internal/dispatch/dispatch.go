package dispatch

import "github.com/example/carpool-companion/internal/models"

// Notifier delivers a freshly created match request to the driver.
// Delivery is best-effort: a driver with no open channel simply sees the
// request next time they load their matches.
type Notifier interface {
	Notify(driverID string, m models.Match) error
}
