package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/arn"
	"github.com/de-tools/compliance-engine/pkg/credentials"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/services/whitelist"
)

var ErrMirrorNotFound = errors.New("mirror not found")

type MirrorStore interface {
	StateStore
	ListMirrors(ctx context.Context) ([]*store.Mirror, error)
	CreateMirror(ctx context.Context, mirror *store.Mirror) error
	DeleteMirror(ctx context.Context, accountID string) error
}

type Controller interface {
	Start(ctx context.Context, target Target) error
	Cancel(ctx context.Context, accountID string) error
	List(ctx context.Context) ([]*store.Mirror, error)
}

// Target is an account whose history is mirrored, read through RoleARN.
type Target struct {
	AccountID string
	RoleARN   string
	Region    string
}

func (t Target) Validate() error {
	if !arn.IsAccountID(t.AccountID) {
		return domain.InvalidParameter("'%s' is not a valid AWS account (12-digit string).", t.AccountID)
	}
	if _, err := arn.ParseRole(t.RoleARN); err != nil {
		return domain.InvalidParameter("'%s' is not a valid role ARN.", t.RoleARN)
	}
	if t.Region == "" {
		return domain.InvalidParameter("region is required")
	}
	return nil
}

type mirrorDescriptor struct {
	cancelFunc context.CancelFunc
	mirror     *store.Mirror
	runner     *Runner
}

type DefaultController struct {
	db        *sql.DB
	broker    credentials.Broker
	sources   SourceFactory
	records   RecordStore
	mirrors   MirrorStore
	whitelist *whitelist.Loader
	config    RunnerConfig

	mu      sync.Mutex
	running map[string]mirrorDescriptor
}

func NewController(
	db *sql.DB,
	broker credentials.Broker,
	sources SourceFactory,
	records RecordStore,
	mirrors MirrorStore,
	wl *whitelist.Loader,
	config RunnerConfig,
) *DefaultController {
	return &DefaultController{
		db:        db,
		broker:    broker,
		sources:   sources,
		records:   records,
		mirrors:   mirrors,
		whitelist: wl,
		config:    config,
		running:   make(map[string]mirrorDescriptor),
	}
}

// Init resumes every persisted mirror.
func (ctrl *DefaultController) Init(ctx context.Context) error {
	mirrors, err := ctrl.mirrors.ListMirrors(ctx)
	if err != nil {
		return err
	}
	for _, m := range mirrors {
		ctrl.startMirror(ctx, m)
	}
	return nil
}

// Start registers the target and starts mirroring it, restarting any mirror
// already running for the same account.
func (ctrl *DefaultController) Start(ctx context.Context, target Target) error {
	if err := target.Validate(); err != nil {
		return err
	}
	m := &store.Mirror{AccountID: target.AccountID, RoleARN: target.RoleARN, Region: target.Region}
	if err := ctrl.mirrors.CreateMirror(ctx, m); err != nil {
		return err
	}

	ctrl.startMirror(ctx, m)
	return nil
}

func (ctrl *DefaultController) Cancel(ctx context.Context, accountID string) error {
	if !ctrl.stop(accountID) {
		return fmt.Errorf("%w: %s", ErrMirrorNotFound, accountID)
	}
	return ctrl.mirrors.DeleteMirror(ctx, accountID)
}

func (ctrl *DefaultController) List(ctx context.Context) ([]*store.Mirror, error) {
	return ctrl.mirrors.ListMirrors(ctx)
}

// Close stops every running mirror and waits for them to finish.
func (ctrl *DefaultController) Close() {
	ctrl.mu.Lock()
	accounts := make([]string, 0, len(ctrl.running))
	for account := range ctrl.running {
		accounts = append(accounts, account)
	}
	ctrl.mu.Unlock()

	for _, account := range accounts {
		ctrl.stop(account)
	}
}

func (ctrl *DefaultController) stop(accountID string) bool {
	ctrl.mu.Lock()
	desc, ok := ctrl.running[accountID]
	delete(ctrl.running, accountID)
	ctrl.mu.Unlock()

	if !ok {
		return false
	}
	desc.cancelFunc()
	<-desc.runner.Done()
	return true
}

// startMirror replaces any runner of the same account. The previous runner is
// stopped under the lock, so concurrent starts never leave one behind.
func (ctrl *DefaultController) startMirror(ctx context.Context, m *store.Mirror) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	if prev, ok := ctrl.running[m.AccountID]; ok {
		prev.cancelFunc()
		<-prev.runner.Done()
	}

	// Mirrors outlive the request that started them.
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	runner := NewRunner(m, ctrl.db, ctrl.broker, ctrl.sources, ctrl.records, ctrl.mirrors, ctrl.whitelist, ctrl.config)
	ctrl.running[m.AccountID] = mirrorDescriptor{
		cancelFunc: cancel,
		mirror:     m,
		runner:     runner,
	}

	zerolog.Ctx(ctx).Info().Str("account", m.AccountID).Str("region", m.Region).Msg("starting mirror")
	go runner.Run(ctx)
}
