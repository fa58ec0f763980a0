package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"
	"audit-ledger/internal/core/ports/mocks"
	"audit-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type auditTestDeps struct {
	svc  *AuditServiceImpl
	repo *mocks.MockAuditEventRepository
	ctrl *gomock.Controller
}

func setupAuditService(t *testing.T, cfg AuditConfig) *auditTestDeps {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAuditEventRepository(ctrl)
	return &auditTestDeps{
		svc:  NewAuditService(repo, cfg, newTestLogger()),
		repo: repo,
		ctrl: ctrl,
	}
}

// ==================== Record Tests ====================

func TestAuditService_Record_StampsIDAndTime(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())
	now := time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.FixedZone("BRT", -3*3600))
	d.svc.WithClock(fixedClock(now))

	ctx := context.Background()
	actor := uuid.New()

	d.repo.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.AuditEvent) error {
			assert.NotEqual(t, uuid.Nil, e.ID)
			assert.Equal(t, time.UTC, e.OccurredAt.Location())
			assert.True(t, e.OccurredAt.Equal(now.Truncate(time.Microsecond)))
			e.Seq = 7
			return nil
		},
	)

	event, err := d.svc.Record(ctx, domain.AuditEventInput{
		Category:   domain.CategoryAccess,
		ActorID:    &actor,
		Action:     "  VIEW_PATIENT ",
		Detail:     "opened chart",
		Provenance: domain.Provenance{SourceIP: "10.1.1.1", UserAgent: "firefox"},
	})
	require.NoError(t, err)
	assert.Equal(t, "VIEW_PATIENT", event.Action)
	assert.Equal(t, domain.SeverityInfo, event.Severity, "severity defaults to INFO")
	assert.Equal(t, int64(7), event.Seq)
	assert.Equal(t, "10.1.1.1", event.SourceIP)
	assert.Equal(t, &actor, event.ActorID)
}

func TestAuditService_Record_Validation(t *testing.T) {
	bad := domain.Operation("MERGE")
	tests := []struct {
		name string
		in   domain.AuditEventInput
	}{
		{"missing category", domain.AuditEventInput{Action: "X"}},
		{"unknown category", domain.AuditEventInput{Category: "AUDIT", Action: "X"}},
		{"missing action", domain.AuditEventInput{Category: domain.CategoryAccess, Action: "   "}},
		{"unknown severity", domain.AuditEventInput{Category: domain.CategoryAccess, Action: "X", Severity: "LOW"}},
		{"unknown operation", domain.AuditEventInput{Category: domain.CategoryChange, Action: "X", Operation: &bad}},
		{"invalid snapshot", domain.AuditEventInput{Category: domain.CategoryChange, Action: "X", Snapshot: json.RawMessage(`{"a":`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupAuditService(t, DefaultAuditConfig())
			// No repo call is expected.
			_, err := d.svc.Record(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))
		})
	}
}

func TestAuditService_Record_BuildsSnapshotFromBeforeAfter(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())

	d.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.AuditEvent) error {
			assert.Contains(t, string(e.ChangeSnapshot), `"changed":{"phone"`)
			return nil
		},
	)

	_, err := d.svc.Record(context.Background(), domain.AuditEventInput{
		Category: domain.CategoryChange,
		Action:   "UPDATE_PROFILE",
		Before:   map[string]any{"phone": "1"},
		After:    map[string]any{"phone": "2"},
	})
	require.NoError(t, err)
}

func TestAuditService_Record_StorageFailurePropagates(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())
	dbErr := errors.New("connection reset by peer")

	d.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(dbErr).Times(1)

	event, err := d.svc.Record(context.Background(), domain.AuditEventInput{
		Category: domain.CategorySecurity,
		Action:   "LOGIN_FAILED",
	})
	assert.Nil(t, event)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindStorage))
	assert.True(t, apperror.IsRetryable(err))
	assert.ErrorIs(t, err, dbErr)
}

// ==================== Convenience Recorder Tests ====================

func TestAuditService_RecordAccess(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())
	actor := uuid.New()

	d.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	event, err := d.svc.RecordAccess(context.Background(), &actor, "LIST_EXAMS", "Exam", "page 1", domain.Provenance{})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAccess, event.Category)
	require.NotNil(t, event.Operation)
	assert.Equal(t, domain.OperationRead, *event.Operation)
	assert.Equal(t, "Exam", *event.EntityName)
}

func TestAuditService_RecordChange(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())
	actor := uuid.New()

	d.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	event, err := d.svc.RecordChange(context.Background(), ports.RecordChangeRequest{
		ActorID:    &actor,
		EntityName: "user preferences",
		EntityID:   actor.String(),
		Operation:  domain.OperationUpdate,
		Before:     map[string]any{"theme": "light"},
		After:      map[string]any{"theme": "dark"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryChange, event.Category)
	assert.Equal(t, "UPDATE_USER_PREFERENCES", event.Action)
	assert.NotEmpty(t, event.ChangeSnapshot)
}

func TestAuditService_RecordChange_RequiresEntity(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())

	_, err := d.svc.RecordChange(context.Background(), ports.RecordChangeRequest{Operation: domain.OperationDelete})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestAuditService_RecordError_DefaultsToWarning(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())

	d.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	event, err := d.svc.RecordError(context.Background(), nil, "EXPORT_FAILED", "timeout", "", domain.Provenance{})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryError, event.Category)
	assert.Equal(t, domain.SeverityWarning, event.Severity)
	assert.Nil(t, event.ActorID)
}

func TestAuditService_RecordLoginAttempt(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())
	actor := uuid.New()

	d.repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	ok, err := d.svc.RecordLoginAttempt(context.Background(), "ana", true, &actor, domain.Provenance{SourceIP: "1.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionLogin, ok.Action)
	assert.Equal(t, domain.SeverityInfo, ok.Severity)
	assert.Equal(t, &actor, ok.ActorID)
	assert.Equal(t, actor.String(), *ok.EntityID)

	failed, err := d.svc.RecordLoginAttempt(context.Background(), "ana", false, &actor, domain.Provenance{SourceIP: "1.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionLoginFailed, failed.Action)
	assert.Equal(t, domain.SeverityWarning, failed.Severity)
	assert.Nil(t, failed.ActorID, "failed attempts never name an actor")
	assert.Contains(t, failed.Detail, "ana")
}

// ==================== Query Tests ====================

func TestAuditService_Query_PageSizeBounds(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"zero uses default", 0, 20},
		{"negative uses default", -4, 20},
		{"within bounds", 50, 50},
		{"above max is clamped", 10_000, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupAuditService(t, DefaultAuditConfig())

			d.repo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, p ports.AuditListParams) ([]domain.AuditEvent, int64, error) {
					assert.Equal(t, tt.want, p.PageSize)
					assert.Equal(t, 1, p.Page)
					return nil, 0, nil
				},
			)

			page, err := d.svc.Query(context.Background(), domain.AuditFilter{}, 1, tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.PageSize)
			assert.NotNil(t, page.Items)
		})
	}
}

func TestAuditService_Query_TotalPages(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())

	d.repo.EXPECT().List(gomock.Any(), gomock.Any()).Return([]domain.AuditEvent{{}, {}}, int64(41), nil)

	page, err := d.svc.Query(context.Background(), domain.AuditFilter{Search: "  login "}, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(41), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Items, 2)
}

func TestAuditService_Query_TrimsSearch(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())

	d.repo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.AuditListParams) ([]domain.AuditEvent, int64, error) {
			assert.Equal(t, "login", p.Filter.Search)
			return nil, 0, nil
		},
	)

	_, err := d.svc.Query(context.Background(), domain.AuditFilter{Search: "  login "}, 1, 10)
	require.NoError(t, err)
}

func TestAuditService_Query_Validation(t *testing.T) {
	entityID := "42"
	from := time.Now()
	to := from.Add(-time.Hour)
	badCategory := domain.EventCategory("NOPE")
	badOperation := domain.Operation("PATCH")

	tests := []struct {
		name   string
		filter domain.AuditFilter
		page   int
	}{
		{"page zero", domain.AuditFilter{}, 0},
		{"entity id without name", domain.AuditFilter{EntityID: &entityID}, 1},
		{"inverted date range", domain.AuditFilter{DateFrom: &from, DateTo: &to}, 1},
		{"unknown category", domain.AuditFilter{Category: &badCategory}, 1},
		{"unknown operation", domain.AuditFilter{Operation: &badOperation}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupAuditService(t, DefaultAuditConfig())
			_, err := d.svc.Query(context.Background(), tt.filter, tt.page, 20)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))
		})
	}
}

func TestAuditService_Query_StorageFailure(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())

	d.repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, int64(0), errors.New("timeout"))

	_, err := d.svc.Query(context.Background(), domain.AuditFilter{}, 1, 20)
	assert.True(t, apperror.IsRetryable(err))
}

// ==================== ByActor / ByEntity Tests ====================

func TestAuditService_ByActor_DefaultAndClampedLimit(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())
	actor := uuid.New()

	d.repo.EXPECT().ListByActor(gomock.Any(), actor, nil, 50).Return(nil, nil)
	d.repo.EXPECT().ListByActor(gomock.Any(), actor, nil, 200).Return(nil, nil)

	events, err := d.svc.ByActor(context.Background(), actor, nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, events)

	_, err = d.svc.ByActor(context.Background(), actor, nil, 999)
	require.NoError(t, err)
}

func TestAuditService_ByActor_PassesTenantScope(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())
	actor := uuid.New()
	scope := "unit-7"

	d.repo.EXPECT().ListByActor(gomock.Any(), actor, &scope, 5).Return([]domain.AuditEvent{{Action: "VIEW_RECORD"}}, nil)

	events, err := d.svc.ByActor(context.Background(), actor, &scope, 5)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAuditService_ByEntity(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())

	scope := "unit-7"
	d.repo.EXPECT().ListByEntity(gomock.Any(), "Patient", "p-1", &scope).Return([]domain.AuditEvent{{Action: "UPDATE_PATIENT"}}, nil)

	events, err := d.svc.ByEntity(context.Background(), "Patient", "p-1", &scope)
	require.NoError(t, err)
	require.Len(t, events, 1)

	_, err = d.svc.ByEntity(context.Background(), "Patient", "", nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

// ==================== Statistics Tests ====================

func TestAuditService_Statistics_DayBoundsInCallerZone(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())
	// 01:30 UTC on the 2nd is still the 1st in São Paulo (UTC-3).
	d.svc.WithClock(fixedClock(time.Date(2026, 5, 2, 1, 30, 0, 0, time.UTC)))
	loc := time.FixedZone("UTC-3", -3*3600)
	scope := "unit-9"

	d.repo.EXPECT().Statistics(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.AuditStatsParams) (*domain.AuditStatistics, error) {
			assert.Equal(t, time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC), p.DayStart)
			assert.Equal(t, time.Date(2026, 5, 2, 3, 0, 0, 0, time.UTC), p.DayEnd)
			assert.Equal(t, 10, p.TopN)
			assert.Equal(t, &scope, p.TenantScope)
			return &domain.AuditStatistics{Total: 3}, nil
		},
	)

	stats, err := d.svc.Statistics(context.Background(), ports.StatisticsScope{TenantScope: &scope, Location: loc})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.NotNil(t, stats.ByCategory)
	assert.NotNil(t, stats.BySeverity)
	assert.NotNil(t, stats.ByOperation)
	assert.NotNil(t, stats.TopEntities)
}

func TestAuditService_Statistics_UsesConfiguredZone(t *testing.T) {
	cfg := DefaultAuditConfig()
	cfg.Location = time.FixedZone("UTC+9", 9*3600)
	cfg.TopEntities = 3
	d := setupAuditService(t, cfg)
	d.svc.WithClock(fixedClock(time.Date(2026, 5, 1, 16, 0, 0, 0, time.UTC)))

	d.repo.EXPECT().Statistics(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.AuditStatsParams) (*domain.AuditStatistics, error) {
			assert.Equal(t, time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC), p.DayStart)
			assert.Equal(t, 3, p.TopN)
			return &domain.AuditStatistics{}, nil
		},
	)

	_, err := d.svc.Statistics(context.Background(), ports.StatisticsScope{})
	require.NoError(t, err)
}

func TestAuditService_Statistics_StorageFailure(t *testing.T) {
	d := setupAuditService(t, DefaultAuditConfig())

	d.repo.EXPECT().Statistics(gomock.Any(), gomock.Any()).Return(nil, errors.New("serialization failure"))

	_, err := d.svc.Statistics(context.Background(), ports.StatisticsScope{})
	assert.True(t, apperror.IsKind(err, apperror.KindStorage))
}

func TestNewAuditService_NormalisesConfig(t *testing.T) {
	svc := NewAuditService(nil, AuditConfig{MaxPageSize: 10, DefaultPageSize: 50}, newTestLogger())

	assert.Equal(t, 10, svc.cfg.MaxPageSize)
	assert.Equal(t, 10, svc.cfg.DefaultPageSize)
	assert.Equal(t, 50, svc.cfg.ActorLimit)
	assert.Equal(t, 10, svc.cfg.TopEntities)
	assert.Equal(t, time.UTC, svc.cfg.Location)
}
