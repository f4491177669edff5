package samples_test

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/labmetrixis/labmetrixis/internal/domain"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"github.com/labmetrixis/labmetrixis/internal/samples"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMembership{},
		&models.Sample{},
		&models.ReportVersion{},
		&models.Report{},
		&models.Notification{},
	))

	return db
}

type fixture struct {
	db         *gorm.DB
	manager    *samples.Manager
	lead       models.User
	technician models.User
	other      models.User
	project    models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)

	f := &fixture{
		db:      db,
		manager: samples.NewManager(db),
		lead:    models.User{Name: "Dr. Lane", Email: "lane@lab.test", PasswordHash: "x", Role: models.RoleResearcher},
		technician: models.User{
			Name: "Tech One", Email: "tech1@lab.test", PasswordHash: "x", Role: models.RoleTechnician,
		},
		other: models.User{
			Name: "Tech Two", Email: "tech2@lab.test", PasswordHash: "x", Role: models.RoleTechnician,
		},
	}

	require.NoError(t, db.Create(&f.lead).Error)
	require.NoError(t, db.Create(&f.technician).Error)
	require.NoError(t, db.Create(&f.other).Error)

	f.project = models.Project{Name: "Genome Study", Status: models.ProjectStatusActive, TeamLeadID: f.lead.ID}
	require.NoError(t, db.Create(&f.project).Error)

	return f
}

func validInput(f *fixture) samples.CreateSampleInput {
	return samples.CreateSampleInput{
		Name:             "S1",
		Description:      "d",
		Type:             "Blood",
		Quantity:         5,
		Unit:             "ml",
		CollectionDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TechnicianID:     f.technician.ID,
		ProtocolFilename: "protocol.pdf",
	}
}

func Test_Create_ValidSampleStartsPending(t *testing.T) {
	f := newFixture(t)

	sample, err := f.manager.Create(f.project.ID, validInput(f))
	require.NoError(t, err)

	assert.Equal(t, models.SampleStatusPending, sample.Status)
	assert.Equal(t, f.project.ID, sample.ProjectID)
	assert.Regexp(t, `^BLOOD-\d+$`, sample.Identification)
}

func Test_Create_ReportsEveryViolatedField(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Create(f.project.ID, samples.CreateSampleInput{})
	require.Error(t, err)

	ve, ok := domain.IsValidation(err)
	require.True(t, ok)

	violated := make(map[string]bool)
	for _, v := range ve.Violations {
		violated[v.Field] = true
	}

	for _, field := range []string{
		"name", "description", "type", "quantity", "unit",
		"technicianResponsible", "collectionDate", "protocolFile",
	} {
		assert.True(t, violated[field], "expected violation for %s", field)
	}
}

func Test_Create_RejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t)

	input := validInput(f)
	input.Quantity = 0

	_, err := f.manager.Create(f.project.ID, input)

	ve, ok := domain.IsValidation(err)
	require.True(t, ok)
	assert.Len(t, ve.Violations, 1)
	assert.Equal(t, "quantity", ve.Violations[0].Field)
}

func Test_Create_RejectsExpirationBeforeCollection(t *testing.T) {
	f := newFixture(t)

	input := validInput(f)
	expires := input.CollectionDate.AddDate(0, 0, -1)
	input.ExpirationDate = &expires

	_, err := f.manager.Create(f.project.ID, input)

	ve, ok := domain.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "expirationDate", ve.Violations[0].Field)
}

func Test_Create_RejectsUnknownTypeAndNonTechnician(t *testing.T) {
	f := newFixture(t)

	input := validInput(f)
	input.Type = "Mystery"

	_, err := f.manager.Create(f.project.ID, input)
	ve, ok := domain.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "type", ve.Violations[0].Field)

	input = validInput(f)
	input.TechnicianID = f.lead.ID

	_, err = f.manager.Create(f.project.ID, input)
	ve, ok = domain.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "technicianResponsible", ve.Violations[0].Field)
}

func Test_StartAnalysis_OnlyAssignedTechnicianFromPending(t *testing.T) {
	f := newFixture(t)

	sample, err := f.manager.Create(f.project.ID, validInput(f))
	require.NoError(t, err)

	// wrong actor first: status must stay Pending
	_, err = f.manager.StartAnalysis(sample.ID, f.other.ID)
	require.Error(t, err)
	assert.True(t, domain.IsForbidden(err))

	current, err := f.manager.Get(sample.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SampleStatusPending, current.Status)

	// assigned technician succeeds
	updated, err := f.manager.StartAnalysis(sample.ID, f.technician.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SampleStatusInAnalysis, updated.Status)

	// wrong actor again: still Forbidden, status unchanged
	_, err = f.manager.StartAnalysis(sample.ID, f.other.ID)
	assert.True(t, domain.IsForbidden(err))

	current, err = f.manager.Get(sample.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SampleStatusInAnalysis, current.Status)

	// right actor, wrong state
	_, err = f.manager.StartAnalysis(sample.ID, f.technician.ID)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))
}

func Test_SubmitAnalysisReport_TransitionsToAnalyzed(t *testing.T) {
	f := newFixture(t)

	sample, err := f.manager.Create(f.project.ID, validInput(f))
	require.NoError(t, err)

	// not yet in analysis
	_, err = f.manager.SubmitAnalysisReport(sample.ID, f.technician.ID, "results: positive")
	assert.True(t, domain.IsInvalidTransition(err))

	_, err = f.manager.StartAnalysis(sample.ID, f.technician.ID)
	require.NoError(t, err)

	// empty report rejected
	_, err = f.manager.SubmitAnalysisReport(sample.ID, f.technician.ID, "  ")
	_, ok := domain.IsValidation(err)
	assert.True(t, ok)

	updated, err := f.manager.SubmitAnalysisReport(sample.ID, f.technician.ID, "results: positive")
	require.NoError(t, err)
	assert.Equal(t, models.SampleStatusAnalyzed, updated.Status)
	assert.Equal(t, "results: positive", updated.AnalysisReport)

	// a Sample report log entry was appended alongside
	var entries []models.Report
	require.NoError(t, f.db.Where("project_id = ?", f.project.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ReportTypeSample, entries[0].Type)
	assert.Equal(t, "results: positive", entries[0].Content)
	require.NotNil(t, entries[0].SampleID)
	assert.Equal(t, sample.ID, *entries[0].SampleID)

	// terminal: no further transitions
	_, err = f.manager.SubmitAnalysisReport(sample.ID, f.technician.ID, "again")
	assert.True(t, domain.IsInvalidTransition(err))
}

func Test_MarkFailed_FromPendingAndInAnalysisOnly(t *testing.T) {
	f := newFixture(t)

	sample, err := f.manager.Create(f.project.ID, validInput(f))
	require.NoError(t, err)

	failed, err := f.manager.MarkFailed(sample.ID, f.technician.ID, "contaminated")
	require.NoError(t, err)
	assert.Equal(t, models.SampleStatusFailed, failed.Status)
	assert.Equal(t, "contaminated", failed.FailureReason)

	// Failed is terminal
	_, err = f.manager.MarkFailed(sample.ID, f.technician.ID, "again")
	assert.True(t, domain.IsInvalidTransition(err))

	_, err = f.manager.StartAnalysis(sample.ID, f.technician.ID)
	assert.True(t, domain.IsInvalidTransition(err))
}

func Test_MarkFailed_NotifiesTechnicianAndTeamLead(t *testing.T) {
	f := newFixture(t)

	sample, err := f.manager.Create(f.project.ID, validInput(f))
	require.NoError(t, err)

	_, err = f.manager.MarkFailed(sample.ID, f.technician.ID, "contaminated")
	require.NoError(t, err)

	var notifications []models.Notification
	require.NoError(t, f.db.
		Where("kind = ? AND sample_id = ?", models.NotificationSampleFailed, sample.ID).
		Order("user_id").
		Find(&notifications).Error)

	require.Len(t, notifications, 2)

	recipients := []uint{notifications[0].UserID, notifications[1].UserID}
	assert.Contains(t, recipients, f.technician.ID)
	assert.Contains(t, recipients, f.lead.ID)

	for _, n := range notifications {
		assert.Contains(t, n.Message, sample.Identification)
		assert.Contains(t, n.Message, "contaminated")
	}
}

func Test_MarkFailed_SingleNotificationWhenLeadIsTechnician(t *testing.T) {
	f := newFixture(t)

	// lead doubles as the assigned technician on their own project
	f.lead.Role = models.RoleTechnician
	require.NoError(t, f.db.Save(&f.lead).Error)

	input := validInput(f)
	input.TechnicianID = f.lead.ID

	sample, err := f.manager.Create(f.project.ID, input)
	require.NoError(t, err)

	_, err = f.manager.MarkFailed(sample.ID, f.lead.ID, "spoiled in transit")
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).
		Where("kind = ? AND sample_id = ?", models.NotificationSampleFailed, sample.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func Test_UpdateDetails_RejectsEarlierExpirationAndKeepsPrior(t *testing.T) {
	f := newFixture(t)

	input := validInput(f)
	expires := input.CollectionDate.AddDate(0, 6, 0)
	input.ExpirationDate = &expires

	sample, err := f.manager.Create(f.project.ID, input)
	require.NoError(t, err)

	tooEarly := input.CollectionDate.AddDate(0, 0, -2)

	_, err = f.manager.UpdateDetails(sample.ID, samples.UpdateDetailsInput{ExpirationDate: &tooEarly})
	_, ok := domain.IsValidation(err)
	require.True(t, ok)

	current, err := f.manager.Get(sample.ID)
	require.NoError(t, err)
	require.NotNil(t, current.ExpirationDate)
	assert.True(t, current.ExpirationDate.Equal(expires))
}

func Test_UpdateDetails_PatchesDescriptiveFieldsOnly(t *testing.T) {
	f := newFixture(t)

	sample, err := f.manager.Create(f.project.ID, validInput(f))
	require.NoError(t, err)

	_, err = f.manager.StartAnalysis(sample.ID, f.technician.ID)
	require.NoError(t, err)

	name := "S1-renamed"
	quantity := 7.5

	updated, err := f.manager.UpdateDetails(sample.ID, samples.UpdateDetailsInput{
		Name:     &name,
		Quantity: &quantity,
	})
	require.NoError(t, err)

	assert.Equal(t, "S1-renamed", updated.Name)
	assert.Equal(t, 7.5, updated.Quantity)
	assert.Equal(t, models.SampleStatusInAnalysis, updated.Status)
}

func Test_Delete_RemovesSample(t *testing.T) {
	f := newFixture(t)

	sample, err := f.manager.Create(f.project.ID, validInput(f))
	require.NoError(t, err)

	require.NoError(t, f.manager.Delete(sample.ID))

	_, err = f.manager.Get(sample.ID)
	assert.True(t, domain.IsNotFound(err))

	assert.True(t, domain.IsNotFound(f.manager.Delete(sample.ID)))
}

func Test_Get_UnknownSampleIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Get(9999)
	assert.True(t, domain.IsNotFound(err))
}
