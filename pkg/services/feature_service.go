package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/audit"
	"github.com/featureplane/feature-engine/pkg/jsonutil"
	"github.com/featureplane/feature-engine/pkg/logging"
	"github.com/featureplane/feature-engine/pkg/models"
	"github.com/featureplane/feature-engine/pkg/repositories"
	"github.com/featureplane/feature-engine/pkg/sandbox"
	"github.com/featureplane/feature-engine/pkg/tabular"
)

// DefaultEntityIDColumn is used when a compute request does not name the
// column carrying entity identity.
const DefaultEntityIDColumn = "id"

// ComputeRequest carries one raw data batch to be computed into a new
// feature version.
type ComputeRequest struct {
	Version        string
	Records        []map[string]any
	EntityIDColumn string
	Metadata       map[string]any
}

// FeatureService provides raw table registration, feature definition, and
// version computation.
type FeatureService interface {
	// RegisterRawTable registers a named raw table with its column contract.
	// A name collision reports apperrors.ErrDuplicate.
	RegisterRawTable(ctx context.Context, name, description string, schema models.RawSchema) (*models.RawTable, error)
	ListRawTables(ctx context.Context, skip, limit int) ([]*models.RawTable, error)
	GetRawTable(ctx context.Context, id uuid.UUID) (*models.RawTable, error)

	// DefineFeature creates a feature definition over a registered raw
	// table. An unknown raw table reports apperrors.ErrNotFound.
	DefineFeature(ctx context.Context, name, description string, rawTableID uuid.UUID, computationLogic, featureType string) (*models.Feature, error)
	ListFeatures(ctx context.Context, skip, limit int) ([]*models.Feature, error)
	GetFeature(ctx context.Context, id uuid.UUID) (*models.Feature, error)
	ListVersions(ctx context.Context, featureID uuid.UUID) ([]*models.FeatureVersion, error)

	// ComputeVersion validates the batch against the feature's raw schema,
	// runs the feature's computation logic in the sandbox, and persists the
	// output as a new immutable version. Validation and computation fail
	// before any persistent write.
	ComputeVersion(ctx context.Context, featureID uuid.UUID, req ComputeRequest) (*models.FeatureVersion, error)
}

type featureService struct {
	rawTableRepo repositories.RawTableRepository
	featureRepo  repositories.FeatureRepository
	versionRepo  repositories.FeatureVersionRepository
	sandbox      *sandbox.Sandbox
	auditor      *audit.SecurityAuditor
	logger       *zap.Logger
}

// NewFeatureService creates a new feature service.
func NewFeatureService(
	rawTableRepo repositories.RawTableRepository,
	featureRepo repositories.FeatureRepository,
	versionRepo repositories.FeatureVersionRepository,
	sb *sandbox.Sandbox,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) FeatureService {
	return &featureService{
		rawTableRepo: rawTableRepo,
		featureRepo:  featureRepo,
		versionRepo:  versionRepo,
		sandbox:      sb,
		auditor:      auditor,
		logger:       logger.Named("features"),
	}
}

var _ FeatureService = (*featureService)(nil)

func (s *featureService) RegisterRawTable(ctx context.Context, name, description string, schema models.RawSchema) (*models.RawTable, error) {
	for column, declared := range schema.ColumnTypes {
		if declared != models.ColumnTypeNumeric && declared != models.ColumnTypeString {
			return nil, fmt.Errorf("%w: column %q declares unknown type %q", apperrors.ErrSchema, column, declared)
		}
	}

	table := &models.RawTable{
		Name:        name,
		Description: description,
		Schema:      schema,
	}
	if err := s.rawTableRepo.Create(ctx, table); err != nil {
		return nil, err
	}

	s.logger.Info("Registered raw table",
		zap.String("name", name),
		zap.Int("required_columns", len(schema.RequiredColumns)))
	return table, nil
}

func (s *featureService) ListRawTables(ctx context.Context, skip, limit int) ([]*models.RawTable, error) {
	return s.rawTableRepo.List(ctx, skip, limit)
}

func (s *featureService) GetRawTable(ctx context.Context, id uuid.UUID) (*models.RawTable, error) {
	return s.rawTableRepo.GetByID(ctx, id)
}

func (s *featureService) DefineFeature(ctx context.Context, name, description string, rawTableID uuid.UUID, computationLogic, featureType string) (*models.Feature, error) {
	if _, err := s.rawTableRepo.GetByID(ctx, rawTableID); err != nil {
		return nil, fmt.Errorf("raw table %s: %w", rawTableID, err)
	}

	s.auditor.ScreenLogic(ctx, name, computationLogic)

	feature := &models.Feature{
		Name:             name,
		Description:      description,
		RawTableID:       rawTableID,
		ComputationLogic: computationLogic,
		FeatureType:      featureType,
	}
	if err := s.featureRepo.Create(ctx, feature); err != nil {
		return nil, err
	}

	s.logger.Info("Defined feature",
		zap.String("name", name),
		zap.String("raw_table_id", rawTableID.String()),
		zap.String("logic", logging.SanitizeLogic(computationLogic)))
	return feature, nil
}

func (s *featureService) ListFeatures(ctx context.Context, skip, limit int) ([]*models.Feature, error) {
	return s.featureRepo.List(ctx, skip, limit)
}

func (s *featureService) GetFeature(ctx context.Context, id uuid.UUID) (*models.Feature, error) {
	return s.featureRepo.GetByID(ctx, id)
}

func (s *featureService) ListVersions(ctx context.Context, featureID uuid.UUID) ([]*models.FeatureVersion, error) {
	if _, err := s.featureRepo.GetByID(ctx, featureID); err != nil {
		return nil, fmt.Errorf("feature %s: %w", featureID, err)
	}
	return s.versionRepo.ListByFeature(ctx, featureID)
}

func (s *featureService) ComputeVersion(ctx context.Context, featureID uuid.UUID, req ComputeRequest) (*models.FeatureVersion, error) {
	feature, err := s.featureRepo.GetByID(ctx, featureID)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", featureID, err)
	}

	rawTable, err := s.rawTableRepo.GetByID(ctx, feature.RawTableID)
	if err != nil {
		return nil, fmt.Errorf("raw table %s: %w", feature.RawTableID, err)
	}

	entityColumn := req.EntityIDColumn
	if entityColumn == "" {
		entityColumn = DefaultEntityIDColumn
	}

	frame, err := tabular.NewFrame(req.Records, entityColumn)
	if err != nil {
		return nil, err
	}

	// Advisory screening only: suspicious values are logged for the
	// security audit trail but never alter validation semantics.
	s.auditor.ScreenRecords(ctx, featureID, req.Version, req.Records)

	// Schema violations must surface before computation runs, so a logic
	// error can never mask a bad batch.
	if err := tabular.Validate(frame, rawTable.Schema); err != nil {
		return nil, err
	}

	series, err := s.sandbox.Compute(ctx, feature.ComputationLogic, frame)
	if err != nil {
		return nil, err
	}

	values := make([]*models.FeatureValue, 0, len(series))
	for _, entry := range series {
		encoded, err := jsonutil.EncodeValue(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: entity %q: %s", apperrors.ErrComputation, entry.EntityID, err)
		}
		values = append(values, &models.FeatureValue{
			EntityID: entry.EntityID,
			Value:    encoded,
		})
	}

	version := &models.FeatureVersion{
		FeatureID: featureID,
		Version:   req.Version,
		Status:    models.VersionStatusActive,
		Metadata:  req.Metadata,
	}
	if err := s.versionRepo.CreateWithValues(ctx, version, values); err != nil {
		return nil, err
	}

	s.logger.Info("Computed feature version",
		zap.String("feature", feature.Name),
		zap.String("version", req.Version),
		zap.Int("entities", len(values)))
	return version, nil
}
