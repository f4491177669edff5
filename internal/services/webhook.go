package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labmetrixis/labmetrixis/internal/models"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordWebhookPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

const (
	colorInfo  = 0x3498db
	colorError = 0xe74c3c
)

// NotifySampleAssigned announces a new sample and its responsible technician
// on the lab's webhook channel. No-op when DISCORD_WEBHOOK_URL is unset.
func NotifySampleAssigned(sample *models.Sample, technicianName string) {
	embed := DiscordEmbed{
		Title:       "Sample registered",
		Description: fmt.Sprintf("%s (%s) is awaiting analysis", sample.Name, sample.Identification),
		Color:       colorInfo,
		Fields: []DiscordWebhookField{
			{Name: "Type", Value: sample.Type, Inline: true},
			{Name: "Technician", Value: technicianName, Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	sendWebhook(embed)
}

// NotifySampleFailed announces a failed sample with its recorded reason.
func NotifySampleFailed(sample *models.Sample) {
	embed := DiscordEmbed{
		Title:       "Sample analysis failed",
		Description: fmt.Sprintf("%s (%s)", sample.Name, sample.Identification),
		Color:       colorError,
		Fields: []DiscordWebhookField{
			{Name: "Reason", Value: sample.FailureReason, Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	sendWebhook(embed)
}

func sendWebhook(embed DiscordEmbed) {
	url := os.Getenv("DISCORD_WEBHOOK_URL")

	if url == "" {
		return
	}

	payload := DiscordWebhookPayload{Embeds: []DiscordEmbed{embed}}

	body, err := json.Marshal(payload)

	if err != nil {
		log.Printf("Failed to marshal webhook payload: %v", err)
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))

	if err != nil {
		log.Printf("Failed to send webhook: %v", err)
		return
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("Webhook returned status %d", resp.StatusCode)
	}
}
