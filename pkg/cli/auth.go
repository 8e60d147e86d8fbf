package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/zalando/go-keyring"
)

const (
	tokenEnvVar    = "PRICER_REGISTRY_TOKEN"
	tokenFileName  = "registry_token"
	keyringService = "pricer"
	keyringUser    = "registry_token"
)

var (
	tokenFlag = &cli.StringFlag{
		Name:  "token",
		Usage: "Model registry token (read from stdin when omitted)",
	}

	logoutFlag = &cli.BoolFlag{
		Name:  "logout",
		Usage: "Remove the stored token",
	}

	authCmd = &cli.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Store the token used to pull model artifacts",
		Action:          cmdAuth,
		Flags: []cli.Flag{
			tokenFlag,
			logoutFlag,
		},
	}
)

func cmdAuth(_ context.Context, cmd *cli.Command) error {
	dir := getConfig(cmd).Dir

	if cmd.Bool(logoutFlag.Name) {
		if err := deleteRegistryToken(dir); err != nil {
			return fmt.Errorf("removing token: %w", err)
		}
		fmt.Fprintln(stdout, "Token removed")
		return nil
	}

	token := cmd.String(tokenFlag.Name)
	if token == "" {
		fmt.Fprint(stdout, "Paste registry token: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading user input: %w", err)
		}
		token = strings.TrimSpace(line)
	}

	if token == "" {
		return cli.ShowSubcommandHelp(cmd)
	}

	if err := saveRegistryToken(dir, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Fprintln(stdout, "Token saved")
	return nil
}

func saveRegistryToken(dir, token string) error {
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return os.WriteFile(filepath.Join(dir, tokenFileName), []byte(token), outputFileMode)
	}

	// Clean up file left by an earlier fallback
	os.Remove(filepath.Join(dir, tokenFileName))
	return nil
}

// getRegistryToken returns the token from the environment, the keychain or
// the fallback file, in that order. No token is not an error.
func getRegistryToken(dir string) (string, error) {
	if token := os.Getenv(tokenEnvVar); token != "" {
		return token, nil
	}

	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}

	b, err := os.ReadFile(filepath.Join(dir, tokenFileName))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	token = strings.TrimSpace(string(b))

	// Migrate to keychain
	if migrateErr := keyring.Set(keyringService, keyringUser, token); migrateErr == nil {
		slog.Info("migrated token from file to OS keychain")
		os.Remove(filepath.Join(dir, tokenFileName))
	}

	return token, nil
}

func deleteRegistryToken(dir string) error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain delete failed", "error", err)
	}
	if err := os.Remove(filepath.Join(dir, tokenFileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
