package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helioform/coachd/internal/coach"
	"github.com/helioform/coachd/internal/config"
	"github.com/helioform/coachd/internal/docs"
	"github.com/helioform/coachd/internal/memory"
	"github.com/helioform/coachd/internal/persona"
	"github.com/helioform/coachd/internal/richcontent"
	"github.com/helioform/coachd/internal/sources"
	"github.com/helioform/coachd/internal/storage"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send one message to the coach",
	Long: `Send one message through the full coaching turn.

Examples:
  coachd chat "What should I eat after my workout?"
  coachd chat --persona prep_coach "How are my macros looking?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		personaID, _ := cmd.Flags().GetString("persona")
		message := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/chat", map[string]string{
			"message": message,
			"persona": personaID,
		})
		if err != nil {
			return err
		}

		var chatResp coach.Response
		if err := decodeResponse(resp, &chatResp); err != nil {
			return err
		}

		printChatResponse(chatResp)
		return nil
	},
}

func printChatResponse(resp coach.Response) {
	fmt.Println(resp.Text)

	for _, item := range resp.RichContent {
		switch data := item.Data.(type) {
		case map[string]any:
			// Decoded from JSON; show type and a compact rendering.
			fmt.Println(colorize(ansiCyan, fmt.Sprintf("[%s] %v", item.Type, data)))
		case richcontent.ButtonData:
			fmt.Println(colorize(ansiCyan, fmt.Sprintf("[button] %s -> %s", data.Label, data.Route)))
		case richcontent.PlanCardData:
			fmt.Println(colorize(ansiCyan, fmt.Sprintf("[plan] %s (%s)", data.Name, data.PlanType)))
		}
	}

	if resp.Adjustment != nil {
		printStep("Macro adjustment: %d -> %d kcal (%s)",
			resp.Adjustment.OriginalCalories, resp.Adjustment.AdjustedCalories, resp.Adjustment.Reason)
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintln(os.Stderr)
		for _, s := range resp.Suggestions {
			fmt.Fprintln(os.Stderr, colorize(ansiYellow, "  ? "+s))
		}
	}
	if resp.Metadata.Fallback {
		printWarning("offline fallback response (confidence %.1f)", resp.Metadata.Confidence)
	}
}

// --- summarize ---

var summarizeCmd = &cobra.Command{
	Use:   "summarize <date>",
	Short: "Summarize one day's conversation and store it for recall",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/summarize", map[string]string{"date": args[0]})
		if err != nil {
			return err
		}

		var out struct {
			Summary string `json:"summary"`
		}
		if err := decodeResponse(resp, &out); err != nil {
			return err
		}
		fmt.Println(out.Summary)
		return nil
	},
}

// --- plans ---

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Manage coach-created plans",
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/plans")
		if err != nil {
			return err
		}

		var plans []memory.Plan
		if err := decodeResponse(resp, &plans); err != nil {
			return err
		}
		if len(plans) == 0 {
			fmt.Println("no active plans")
			return nil
		}
		for _, p := range plans {
			fmt.Printf("%s  %-12s %s\n", p.ID, p.Type, p.Name)
			if p.Details != "" {
				fmt.Printf("    %s\n", p.Details)
			}
		}
		return nil
	},
}

var plansInvalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Invalidate a plan so it is no longer active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/plans/"+args[0]+"/invalidate", nil)
		if err != nil {
			return err
		}
		if err := decodeResponse(resp, nil); err != nil {
			return err
		}
		printSuccess("plan %s invalidated", args[0])
		return nil
	},
}

// --- memory ---

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect conversation memory",
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search past sessions by relevance",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/memory/search", map[string]any{
			"query": strings.Join(args, " "),
			"limit": limit,
		})
		if err != nil {
			return err
		}

		var matches []memory.SessionMatch
		if err := decodeResponse(resp, &matches); err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("no matching sessions")
			return nil
		}
		for _, m := range matches {
			fmt.Println(colorize(ansiBold, m.Date))
			for _, msg := range m.Messages {
				fmt.Printf("  %s: %s\n", msg.Role, msg.Content)
			}
		}
		return nil
	},
}

var memoryDatesCmd = &cobra.Command{
	Use:   "dates",
	Short: "List session dates",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/conversations")
		if err != nil {
			return err
		}

		var dates []string
		if err := decodeResponse(resp, &dates); err != nil {
			return err
		}
		for _, d := range dates {
			fmt.Println(d)
		}
		return nil
	},
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Show one day's conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/conversations/"+args[0])
		if err != nil {
			return err
		}

		var msgs []memory.Message
		if err := decodeResponse(resp, &msgs); err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04"), m.Role, m.Content)
		}
		return nil
	},
}

// --- personas ---

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List available coaching personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/personas")
		if err != nil {
			return err
		}

		var personas []persona.Persona
		if err := decodeResponse(resp, &personas); err != nil {
			return err
		}
		for _, p := range personas {
			gate := ""
			if p.IsPremium {
				gate = colorize(ansiYellow, " (premium)")
			}
			fmt.Printf("%-12s %s%s\n", p.ID, p.Name, gate)
			if len(p.Strengths) > 0 {
				fmt.Printf("    strengths: %s\n", strings.Join(p.Strengths, ", "))
			}
		}
		return nil
	},
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage reference documents",
}

var docsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a reference document (text or PDF)",
	Long: `Import a reference document into the coach's memory.

Examples:
  coachd docs import meal-plan.pdf --title "Cut phase meal plan" --tags nutrition
  coachd docs import notes.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		tagsStr, _ := cmd.Flags().GetString("tags")

		var tags []string
		if tagsStr != "" {
			tags = strings.Split(tagsStr, ",")
			for i := range tags {
				tags[i] = strings.TrimSpace(tags[i])
			}
		}

		// Import happens locally: the file is read here and its text
		// pushed through the API.
		content, err := readDocFile(args[0])
		if err != nil {
			return err
		}
		if title == "" {
			title = args[0]
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/docs", map[string]any{
			"title":   title,
			"content": content,
			"tags":    tags,
		})
		if err != nil {
			return err
		}

		var doc storage.Doc
		if err := decodeResponse(resp, &doc); err != nil {
			return err
		}
		printSuccess("imported %q (%s)", doc.Title, doc.ID)
		return nil
	},
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/docs")
		if err != nil {
			return err
		}

		var list []storage.Doc
		if err := decodeResponse(resp, &list); err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("no documents")
			return nil
		}
		for _, d := range list {
			fmt.Printf("%s  %s  (%d bytes)\n", d.ID, d.Title, len(d.Content))
		}
		return nil
	},
}

// --- state ---

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Manage the pushed user state the coach reads each turn",
}

var statePushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Push a user state JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		var state sources.State
		if err := json.Unmarshal(data, &state); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/v1/state", state)
		if err != nil {
			return err
		}
		if err := decodeResponse(resp, nil); err != nil {
			return err
		}
		printSuccess("state pushed")
		return nil
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current pushed state",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/state")
		if err != nil {
			return err
		}

		var state sources.State
		if err := decodeResponse(resp, &state); err != nil {
			return err
		}

		printStatus("Date", "%s", state.Date)
		printStatus("Goals", "%d kcal | P %dg | C %dg | F %dg | %d steps",
			state.Goals.DailyCalories, state.Goals.ProteinG, state.Goals.CarbsG,
			state.Goals.FatG, state.Goals.DailySteps)
		printStatus("Consumed", "%d kcal, %d meals", state.Nutrition.Calories, state.Nutrition.MealsLogged)
		printStatus("Steps", "%d", state.Activity.Steps)
		if state.Health != nil {
			printStatus("Health", "sleep %s, recovery %d", state.Health.Sleep, state.Health.Recovery)
		}
		if len(state.Wearables) > 0 {
			printStatus("Wearables", "%s", strings.Join(state.Wearables, ", "))
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage coachd configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadUnchecked()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("%-24s %-32s %s\n", k.Key, k.Value, colorize(ansiCyan, k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("%s = %s", args[0], args[1])
		return nil
	},
}

func readDocFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := docs.ExtractPDFText(path)
		if err != nil {
			return "", fmt.Errorf("extracting PDF text from %s: %w", path, err)
		}
		return text, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func init() {
	chatCmd.Flags().String("persona", "", "persona id to use for this turn")
	memorySearchCmd.Flags().Int("limit", 3, "maximum number of session groups")
	docsImportCmd.Flags().String("title", "", "document title")
	docsImportCmd.Flags().String("tags", "", "comma-separated tags")

	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansInvalidateCmd)
	memoryCmd.AddCommand(memorySearchCmd)
	memoryCmd.AddCommand(memoryDatesCmd)
	memoryCmd.AddCommand(memoryShowCmd)
	docsCmd.AddCommand(docsImportCmd)
	docsCmd.AddCommand(docsListCmd)
	stateCmd.AddCommand(statePushCmd)
	stateCmd.AddCommand(stateShowCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)
}
