// Package setup is the first-run wizard that stores the bot credentials.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/dojobot/internal/credential"
	"github.com/nhle/dojobot/internal/model"
)

var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]{20,}$`)

// Secrets stores credential values by key.
type Secrets interface {
	Set(key, value string) error
}

// Values holds the wizard answers.
type Values struct {
	Token           string
	CredentialsFile string
	ProjectID       string
	BotName         string
}

// Form builds the wizard form bound to v.
func Form(v *Values) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot name").
				Description("How the bot introduces itself and is addressed in voice messages").
				Placeholder("Dojo Bot").
				Value(&v.BotName).
				Validate(validateRequired("Bot name")),
			huh.NewInput().
				Title("Bot token").
				Description("The token BotFather gave you").
				EchoMode(huh.EchoModePassword).
				Value(&v.Token).
				Validate(validateToken),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Dialogflow project").
				Description("The Google Cloud project id of the agent").
				Value(&v.ProjectID).
				Validate(validateRequired("Project")),
			huh.NewInput().
				Title("Service account key").
				Description("Path to the JSON key file, stored in the keyring").
				Placeholder("~/keys/dojo.json").
				Value(&v.CredentialsFile).
				Validate(validateCredentialsFile),
		),
	)
}

// Run shows the wizard, then saves the answers. Aborting the form saves
// nothing.
func Run(secrets Secrets, cfg *model.AppConfig, configPath string) error {
	v := Values{
		BotName:   cfg.BotName,
		ProjectID: cfg.NLU.ProjectID,
	}
	if err := Form(&v).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return fmt.Errorf("running setup: %w", err)
	}
	return Save(secrets, cfg, configPath, v)
}

// Save stores the secrets in the keyring and the rest in the config file.
func Save(secrets Secrets, cfg *model.AppConfig, configPath string, v Values) error {
	if err := validateRequired("Bot name")(v.BotName); err != nil {
		return err
	}
	if err := validateToken(v.Token); err != nil {
		return err
	}
	if err := validateCredentialsFile(v.CredentialsFile); err != nil {
		return err
	}

	key, err := os.ReadFile(expandHome(v.CredentialsFile))
	if err != nil {
		return fmt.Errorf("reading service account key: %w", err)
	}
	if err := secrets.Set(credential.KeyTelegramToken, strings.TrimSpace(v.Token)); err != nil {
		return err
	}
	if err := secrets.Set(credential.KeyNLUCredentials, string(key)); err != nil {
		return err
	}

	updated := *cfg
	updated.BotName = strings.TrimSpace(v.BotName)
	updated.NLU.ProjectID = strings.TrimSpace(v.ProjectID)
	updated.NLU.CredentialsFile = ""
	if err := model.SaveConfig(configPath, &updated); err != nil {
		return err
	}
	*cfg = updated
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateToken(s string) error {
	if !tokenPattern.MatchString(strings.TrimSpace(s)) {
		return fmt.Errorf("token must look like 123456:ABC-DEF...")
	}
	return nil
}

func validateCredentialsFile(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("key file is required")
	}
	data, err := os.ReadFile(expandHome(s))
	if err != nil {
		return fmt.Errorf("cannot read key file: %w", err)
	}
	var key struct {
		Type        string `json:"type"`
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return fmt.Errorf("key file is not JSON: %w", err)
	}
	if key.Type != "service_account" || key.ClientEmail == "" {
		return fmt.Errorf("key file is not a service account key")
	}
	return nil
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + "/" + rest
}
