package whitelist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

// Disabled is the location value that turns whitelisting off.
const Disabled = "none"

// ObjectReader fetches the whitelist document.
type ObjectReader interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Location is where the whitelist document lives, written as "bucket/key".
type Location struct {
	Bucket string
	Key    string
}

func ParseLocation(s string) (*Location, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == Disabled {
		return nil, nil
	}
	bucket, key, ok := strings.Cut(s, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("whitelist location %q must be bucket/key or %q", s, Disabled)
	}
	return &Location{Bucket: bucket, Key: key}, nil
}

type Loader struct {
	objects  ObjectReader
	location *Location
	now      func() time.Time
}

func NewLoader(objects ObjectReader, location *Location) *Loader {
	return &Loader{objects: objects, location: location, now: time.Now}
}

// Load reads the whitelist once per audit. A load failure is not returned;
// it is carried in the Overrides so every record reports the Error state.
func (l *Loader) Load(ctx context.Context) *Overrides {
	o := &Overrides{today: domain.DateOf(l.now().UTC())}
	if l.location == nil {
		return o
	}

	body, err := l.objects.Get(ctx, l.location.Bucket, l.location.Key)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("whitelist could not be loaded")
		o.err = err
		return o
	}
	var wl domain.Whitelist
	if err := json.Unmarshal(body, &wl); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("whitelist could not be parsed")
		o.err = fmt.Errorf("%w: whitelist: %v", domain.ErrMalformedManifest, err)
		return o
	}
	o.list = &wl
	return o
}

// Overrides applies a loaded whitelist to individual evaluation results.
type Overrides struct {
	list  *domain.Whitelist
	err   error
	today domain.Date
}

func NewOverrides(list *domain.Whitelist, today domain.Date) *Overrides {
	return &Overrides{list: list, today: today}
}

func (o *Overrides) Err() error {
	return o.err
}

// Decide returns the compliance type to publish and the whitelist state. An
// exempted result is published as COMPLIANT.
func (o *Overrides) Decide(ruleARN, ruleName, resourceID string, ct domain.ComplianceType) (domain.ComplianceType, domain.WhitelistState) {
	if o.err != nil {
		return ct, domain.WhitelistError
	}
	if o.list.Exempts([]string{ruleARN, ruleName}, resourceID, o.today) {
		return domain.Compliant, domain.WhitelistApplied
	}
	return ct, domain.WhitelistNotApplied
}
