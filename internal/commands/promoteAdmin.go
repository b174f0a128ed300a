package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"clubdesk/internal/config"
	"clubdesk/internal/models"
)

// PromoteAdmin promotes an existing account to staff through the running
// server's owner console.
func PromoteAdmin(email string, cfg *config.Config) error {
	reqBody, err := json.Marshal(map[string]string{"email": email, "actor": "cli"})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/owner/admins", cfg.OwnerAddr)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to call owner console: %w. Is the server running?", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to promote admin (Status: %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Admin models.User `json:"admin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("\nAdmin promoted successfully!\n")
	fmt.Printf("Username: %s\n", result.Admin.Username)
	fmt.Printf("Email:    %s\n", result.Admin.Email)
	fmt.Printf("Role:     %s\n", result.Admin.Role)
	return nil
}
