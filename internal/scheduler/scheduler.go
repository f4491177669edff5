// Package scheduler runs the sample expiry sweep: samples past their
// expiration date in a non-terminal status are flagged once and their
// technician and team lead are notified.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/labmetrixis/labmetrixis/db"
	"github.com/labmetrixis/labmetrixis/internal/handlers"
	"github.com/labmetrixis/labmetrixis/internal/models"
	"gorm.io/gorm"
)

type Sweeper struct {
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSweeper initializes a new expiry Sweeper instance.
func NewSweeper(interval time.Duration) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs one sweep immediately and then on every tick until Stop.
func (s *Sweeper) Start() {
	log.Printf("Starting expiry sweeper (interval %s)", s.interval)

	go func() {
		s.RunOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce()
			}
		}
	}()
}

// Stop cancels the sweep loop.
func (s *Sweeper) Stop() {
	log.Println("Stopping expiry sweeper...")
	s.cancel()
}

// RunOnce performs a single sweep pass over the sample table.
func (s *Sweeper) RunOnce() {
	var expired []models.Sample

	err := db.DB.
		Where("expiration_date IS NOT NULL AND expiration_date < ?", time.Now()).
		Where("status IN ?", []string{models.SampleStatusPending, models.SampleStatusInAnalysis}).
		Where("expiry_notified_at IS NULL").
		Find(&expired).Error

	if err != nil {
		log.Printf("Expiry sweep query failed: %v", err)
		return
	}

	for _, sample := range expired {
		if err := s.flag(sample); err != nil {
			log.Printf("Failed to flag expired sample %d: %v", sample.ID, err)
			continue
		}

		handlers.BroadcastRefresh(fmt.Sprint(sample.ProjectID))
	}

	if len(expired) > 0 {
		log.Printf("Expiry sweep flagged %d samples", len(expired))
	}
}

// flag stamps the sample and notifies its technician and the project's team
// lead in one transaction, so a crashed sweep never half-notifies.
func (s *Sweeper) flag(sample models.Sample) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Sample{}).
			Where("id = ? AND expiry_notified_at IS NULL", sample.ID).
			Update("expiry_notified_at", time.Now())

		if result.Error != nil {
			return result.Error
		}

		// Another sweep already claimed it.
		if result.RowsAffected == 0 {
			return nil
		}

		var project models.Project

		if err := tx.First(&project, sample.ProjectID).Error; err != nil {
			return err
		}

		message := fmt.Sprintf("Sample %s (%s) passed its expiration date", sample.Name, sample.Identification)
		sampleID := sample.ID

		recipients := []uint{sample.TechnicianID}

		if project.TeamLeadID != sample.TechnicianID {
			recipients = append(recipients, project.TeamLeadID)
		}

		for _, userID := range recipients {
			notification := models.Notification{
				UserID:   userID,
				SampleID: &sampleID,
				Kind:     models.NotificationSampleExpired,
				Message:  message,
			}

			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
