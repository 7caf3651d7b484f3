package memory

import (
	"github.com/rs/zerolog"

	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func deliveryOf(id string, ev domain.BillingEvent) ports.BillingDelivery {
	return ports.BillingDelivery{Provider: "stripe", EventID: id, Event: ev}
}
