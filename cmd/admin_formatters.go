package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"casetrack/core"
)

// renderUsersTable displays users in a formatted table
func renderUsersTable(users []*core.User) {
	if len(users) == 0 {
		warningColor.Println("No users found")
		return
	}

	headerColor.Println("USERS")
	headerColor.Println(strings.Repeat("=", 100))
	fmt.Printf("%-10s %-25s %-40s %-8s %-12s\n",
		"ID", "Username", "Permissions", "Active", "Created")
	fmt.Println(strings.Repeat("-", 100))

	for _, user := range users {
		shortID := user.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		username := user.Username
		if len(username) > 24 {
			username = username[:21] + "..."
		}

		perms := make([]string, len(user.Permissions))
		for i, p := range user.Permissions {
			perms[i] = string(p)
		}

		fmt.Printf("%-10s %-25s %-40s %-8s %-12s\n",
			shortID, username, strings.Join(perms, ","),
			formatBool(user.Active), user.CreatedAt.Format("2006-01-02"))
	}

	fmt.Println(strings.Repeat("=", 100))
	infoColor.Printf("%d user(s)\n", len(users))
}

// printField prints a labeled value with consistent alignment
func printField(label, value string) {
	fmt.Printf("  %-14s %s\n", label+":", value)
}

// formatBool renders a boolean as Yes/No
func formatBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// outputAsJSON marshals any value as indented JSON to stdout
func outputAsJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// generatePassword produces a random password suitable for a fresh account.
func generatePassword() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	password := base64.URLEncoding.EncodeToString(bytes)
	if len(password) > 24 {
		password = password[:24]
	}
	return password, nil
}
