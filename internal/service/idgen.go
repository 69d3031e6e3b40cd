package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// categoryCounter counts existing tickets in a category; the sequence
// source for generated ids.
type categoryCounter interface {
	CountByCategory(ctx context.Context, category string) (int, error)
}

// mirrorCounter is the file-backed fallback counter.
type mirrorCounter interface {
	CountByCategory(category string) (int, error)
}

// fallbackBuildingCode is used when the submitted building is not in the
// known set. Ids must always be well-formed, so unknown buildings never
// fail generation.
const fallbackBuildingCode = "HQ"

// knownBuildings pass through into the id unchanged.
var knownBuildings = map[string]struct{}{
	"LOS1": {},
	"LOS2": {},
	"ABJ1": {},
	"PHC1": {},
	"HQ":   {},
}

// categoryCodes maps the category vocabulary to short codes. Anything
// outside the vocabulary becomes GEN.
var categoryCodes = map[string]string{
	"Network":  "NET",
	"Hardware": "HW",
	"Software": "SW",
	"Security": "SEC",
	"Power":    "PWR",
	"Facility": "FAC",
}

// TicketIDGenerator produces structured ticket ids of the form
// KASI-<building>-<yyyymmdd>-<catShort>-<NNNN>.
type TicketIDGenerator struct {
	store  categoryCounter
	mirror mirrorCounter
	logger *zap.Logger
	now    func() time.Time
}

// NewTicketIDGenerator constructs a generator. now may be nil, in which
// case time.Now is used.
func NewTicketIDGenerator(store categoryCounter, mirror mirrorCounter, logger *zap.Logger, now func() time.Time) *TicketIDGenerator {
	if now == nil {
		now = time.Now
	}
	return &TicketIDGenerator{store: store, mirror: mirror, logger: logger, now: now}
}

// Generate builds the next id for the category and building. The
// sequence is the count of existing tickets in the category plus one,
// taken from the record store and falling back to the mirror file when
// the store is unreachable.
func (g *TicketIDGenerator) Generate(ctx context.Context, category, building string) string {
	code := fallbackBuildingCode
	trimmed := strings.TrimSpace(building)
	if _, ok := knownBuildings[trimmed]; ok {
		code = trimmed
	}

	short, ok := categoryCodes[strings.TrimSpace(category)]
	if !ok {
		short = "GEN"
	}

	count := g.countCategory(ctx, category)
	return fmt.Sprintf("KASI-%s-%s-%s-%04d", code, g.now().Format("20060102"), short, count+1)
}

func (g *TicketIDGenerator) countCategory(ctx context.Context, category string) int {
	if g.store != nil {
		count, err := g.store.CountByCategory(ctx, category)
		if err == nil {
			return count
		}
		if g.logger != nil {
			g.logger.Warn("id sequence from store failed, using mirror", zap.String("category", category), zap.Error(err))
		}
	}
	if g.mirror != nil {
		count, err := g.mirror.CountByCategory(category)
		if err == nil {
			return count
		}
		if g.logger != nil {
			g.logger.Warn("id sequence from mirror failed", zap.String("category", category), zap.Error(err))
		}
	}
	return 0
}
