package enrich

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/resilience"
)

// Lookuper resolves the parcel containing a point. A nil parcel with a nil
// error means no parcel exists there.
type Lookuper interface {
	LookupParcel(ctx context.Context, lat, lon float64) (*model.Parcel, error)
}

// Outcome classifies how a row was enriched.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeMissingCoordinates
	OutcomeNotFound
	OutcomeUnknownError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeMissingCoordinates:
		return "missing_coordinates"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeUnknownError:
		return "unknown_error"
	default:
		return "unknown"
	}
}

// Enricher enriches rows one at a time through a Lookuper.
type Enricher struct {
	lookup Lookuper
	retry  resilience.RetryConfig
}

// NewEnricher creates an Enricher. A lookup failing with a transient error
// is retried once after retryDelay.
func NewEnricher(lookup Lookuper, retryDelay time.Duration) *Enricher {
	retry := resilience.SingleRetry(retryDelay)
	retry.OnRetry = resilience.RetryLogger("apicarto", "lookup_parcel")
	return &Enricher{lookup: lookup, retry: retry}
}

// Enrich returns the output row for row under schema. It never fails:
// every failure is recorded in the status column.
func (e *Enricher) Enrich(ctx context.Context, schema *Schema, row model.Row) (model.Row, Outcome) {
	rawLat, rawLon := schema.Coordinates(row)
	lat, latOK := ParseCoordinate(rawLat)
	lon, lonOK := ParseCoordinate(rawLon)
	if !latOK || !lonOK {
		return schema.merge(row, nil, StatusMissingCoordinates), OutcomeMissingCoordinates
	}

	parcel, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*model.Parcel, error) {
		return e.lookup.LookupParcel(ctx, lat, lon)
	})
	if err != nil {
		zap.L().Debug("enrich: lookup failed",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err),
		)
		return schema.merge(row, nil, StatusUnknownError), OutcomeUnknownError
	}
	if parcel == nil {
		return schema.merge(row, nil, StatusNotFound), OutcomeNotFound
	}
	return schema.merge(row, parcel, ""), OutcomeFound
}

// ParseCoordinate parses a cell as a decimal degree. Blank, NaN, infinite
// and unparsable values are reported as missing. A comma decimal separator
// is accepted.
func ParseCoordinate(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
