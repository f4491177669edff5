package reports_test

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/labmetrixis/labmetrixis/internal/domain"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"github.com/labmetrixis/labmetrixis/internal/reports"
)

func newTestDB(t *testing.T) (*gorm.DB, models.Project) {
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

	lead := models.User{Name: "Dr. Lane", Email: "lane@lab.test", PasswordHash: "x", Role: models.RoleResearcher}
	require.NoError(t, db.Create(&lead).Error)

	project := models.Project{Name: "Genome Study", Status: models.ProjectStatusActive, TeamLeadID: lead.ID}
	require.NoError(t, db.Create(&project).Error)

	return db, project
}

func Test_SaveDraft_NeverAppendsVersions(t *testing.T) {
	db, project := newTestDB(t)
	manager := reports.NewManager(db)

	saved, err := manager.SaveDraft(project.ID, "draft one", nil)
	require.NoError(t, err)
	assert.Equal(t, "draft one", saved.FinalReportContent)
	assert.Nil(t, saved.FinalReportPublishedAt)

	// idempotent in effect: identical content, still zero versions
	saved, err = manager.SaveDraft(project.ID, "draft one", nil)
	require.NoError(t, err)
	assert.Equal(t, "draft one", saved.FinalReportContent)

	versions, err := manager.ListVersions(project.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func Test_SaveDraft_MissingProjectIsNotFound(t *testing.T) {
	db, _ := newTestDB(t)

	_, err := reports.NewManager(db).SaveDraft(9999, "content", nil)
	assert.True(t, domain.IsNotFound(err))
}

func Test_Publish_AppendsOneVersionPerPublish(t *testing.T) {
	db, project := newTestDB(t)
	manager := reports.NewManager(db)

	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)

	v1, err := manager.Publish(project.ID, "v1", t1)
	require.NoError(t, err)

	v2, err := manager.Publish(project.ID, "v2", t2)
	require.NoError(t, err)

	assert.NotEqual(t, v1.ID, v2.ID)

	versions, err := manager.ListVersions(project.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	assert.Equal(t, v1.ID, versions[0].ID)
	assert.Equal(t, v2.ID, versions[1].ID)
	assert.Equal(t, 2, versions[0].ContentLength)
	assert.True(t, versions[0].CreatedAt.Before(versions[1].CreatedAt) || versions[0].CreatedAt.Equal(versions[1].CreatedAt))

	// history is never overwritten
	loaded, err := manager.LoadVersion(project.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", loaded.Content)

	loaded, err = manager.LoadVersion(project.ID, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", loaded.Content)

	// the draft now holds the last published content with publishedAt set
	var refreshed models.Project
	require.NoError(t, db.First(&refreshed, project.ID).Error)
	assert.Equal(t, "v2", refreshed.FinalReportContent)
	require.NotNil(t, refreshed.FinalReportPublishedAt)
	assert.True(t, refreshed.FinalReportPublishedAt.Equal(t2))
}

func Test_Publish_MissingProjectIsNotFound(t *testing.T) {
	db, _ := newTestDB(t)

	_, err := reports.NewManager(db).Publish(9999, "content", time.Now())
	assert.True(t, domain.IsNotFound(err))
}

func Test_LoadVersion_ScopedToProject(t *testing.T) {
	db, project := newTestDB(t)
	manager := reports.NewManager(db)

	version, err := manager.Publish(project.ID, "v1", time.Now())
	require.NoError(t, err)

	_, err = manager.LoadVersion(project.ID+1, version.ID)
	assert.True(t, domain.IsNotFound(err))

	_, err = manager.LoadVersion(project.ID, version.ID+100)
	assert.True(t, domain.IsNotFound(err))
}

func Test_LoadVersion_DoesNotTouchDraft(t *testing.T) {
	db, project := newTestDB(t)
	manager := reports.NewManager(db)

	version, err := manager.Publish(project.ID, "published", time.Now())
	require.NoError(t, err)

	_, err = manager.SaveDraft(project.ID, "newer draft", nil)
	require.NoError(t, err)

	_, err = manager.LoadVersion(project.ID, version.ID)
	require.NoError(t, err)

	var refreshed models.Project
	require.NoError(t, db.First(&refreshed, project.ID).Error)
	assert.Equal(t, "newer draft", refreshed.FinalReportContent)
}
