// Package assets serves the bot's static resources embedded via go:embed:
// HTML message templates, inline menu definitions, and assistant instruction
// prompts. Nothing here is read on the message hot path except the error
// notice, which is loaded once by the frontend at startup.
package assets

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed all:resources
var resourcesFS embed.FS

// MenuButton is one inline keyboard button: a visible label and the
// callback data sent back when pressed.
type MenuButton struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Message returns the HTML message template with the given base name.
func Message(name string) (string, error) {
	data, err := resourcesFS.ReadFile("resources/messages/" + name + ".html")
	if err != nil {
		return "", fmt.Errorf("loading message %q: %w", name, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// Menu returns the inline keyboard rows defined in the named menu file.
func Menu(name string) ([][]MenuButton, error) {
	data, err := resourcesFS.ReadFile("resources/menus/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("loading menu %q: %w", name, err)
	}
	var rows [][]MenuButton
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing menu %q: %w", name, err)
	}
	return rows, nil
}

// Prompt returns the assistant instruction text with the given base name.
// Used only by the assistant-admin CLI.
func Prompt(name string) (string, error) {
	data, err := resourcesFS.ReadFile("resources/prompts/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("loading prompt %q: %w", name, err)
	}
	return string(data), nil
}

// PromptNames lists the embedded prompt base names.
func PromptNames() ([]string, error) {
	entries, err := resourcesFS.ReadDir("resources/prompts")
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	return names, nil
}
