package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vrec-go/internal/app"
	"vrec-go/internal/config"
	"vrec-go/internal/encryption"
	"vrec-go/internal/vr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newApp reads the config and creates a VRecApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "SaveAudio", "List").
func newApp(cmd *cobra.Command, operation string) (*app.VRecApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	owner, _ := cmd.Flags().GetString("owner")
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := app.Options{
		OwnerID:   owner,
		LogMirror: os.Stderr,
		LogLevel:  level,
	}
	if cfg.Encryption.Type == "age" {
		enc := encryption.NewAgeEncryptor(cfg.Encryption)
		opts.Unlock = func() (vr.DecryptionContext, error) {
			pass, err := readPassphrase("Passphrase: ")
			if err != nil {
				return nil, err
			}
			return enc.Unlock(pass)
		}
	}

	a, err := app.NewVRecApp(cmd.Context(), cfg, operation, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// withApp runs fn against a fresh app and closes it, reporting the first error.
func withApp(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app.VRecApp) error) error {
	a, err := newApp(cmd, operation)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	runErr := fn(ctx, a)
	closeErr := a.Close(ctx)
	return errors.Join(runErr, closeErr)
}

// readPassphrase prompts on stderr and reads a line from the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

func printRecording(m *vr.AudioMetadata) {
	fmt.Printf("ID:          %s\n", m.ID)
	fmt.Printf("Name:        %s\n", m.Name)
	if m.Description != "" {
		fmt.Printf("Description: %s\n", m.Description)
	}
	fmt.Printf("Format:      %s\n", m.Format)
	fmt.Printf("Duration:    %s\n", formatDuration(m.Duration))
	fmt.Printf("Size:        %d bytes\n", m.Size)
	fmt.Printf("Created:     %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:     %s\n", m.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if m.DeviceInfo != "" {
		fmt.Printf("Device:      %s\n", m.DeviceInfo)
	}
	if m.IsPublic && m.ShareableURL != nil {
		expires := "never"
		if m.ExpirationDate != nil {
			expires = m.ExpirationDate.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("Shared:      %s (expires %s)\n", *m.ShareableURL, expires)
	}
	if m.Transcription != nil {
		fmt.Printf("Transcript:  %s\n", *m.Transcription)
	}
}

func formatDuration(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Truncate(time.Millisecond).String()
}

var rootCmd = &cobra.Command{
	Use:          "vrec",
	Short:        "Local voice recording manager",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		owner, _ := cmd.Flags().GetString("owner")

		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		if owner == "" {
			owner = uuid.New().String()
		}

		cfg := config.NewConfig(owner, hostID, defaults["base_dir"])
		if encrypt {
			cfg.Encryption.Type = "age"
			pass, err := readPassphrase("New passphrase: ")
			if err != nil {
				return err
			}
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if pass != confirm {
				return fmt.Errorf("passphrases do not match")
			}
			if err := encryption.NewAgeEncryptor(cfg.Encryption).Setup(pass); err != nil {
				return fmt.Errorf("setting up encryption: %w", err)
			}
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Owner ID: %s\n", owner)
		fmt.Printf("Host ID:  %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Owner ID:      %s\n", cfg.OwnerID)
		fmt.Printf("Host ID:       %s\n", cfg.HostID)
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Database:      %s\n", cfg.Database.Type)
		for i, v := range cfg.Vaults {
			role := ""
			if i == 0 {
				role = " (payloads)"
			}
			if cfg.Sync.Enabled && v.Name == cfg.Sync.Vault {
				role += " (sync)"
			}
			fmt.Printf("Vault:         %s [%s]%s\n", v.Name, v.Type, role)
		}
		fmt.Printf("Encryption:    %s\n", cfg.Encryption.Type)
		fmt.Printf("Transcription: %s\n", cfg.Transcription.Type)
		return nil
	},
}

// save command
var saveCmd = &cobra.Command{
	Use:   "save FILE",
	Short: "Save a captured recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		duration, _ := cmd.Flags().GetFloat64("duration")
		format, _ := cmd.Flags().GetString("format")

		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		return withApp(cmd, "SaveAudio", func(ctx context.Context, a *app.VRecApp) error {
			meta, err := a.SaveFile(ctx, path, name, description, duration, format)
			if err != nil {
				return fmt.Errorf("saving recording: %w", err)
			}
			fmt.Printf("Saved %s (%s)\n", meta.ID, meta.Name)
			return nil
		})
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Import an existing audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		format, _ := cmd.Flags().GetString("format")

		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		return withApp(cmd, "UploadAudio", func(ctx context.Context, a *app.VRecApp) error {
			meta, err := a.UploadFile(ctx, path, name, description, format)
			if err != nil {
				return fmt.Errorf("uploading recording: %w", err)
			}
			fmt.Printf("Uploaded %s (%s, %s, %s)\n", meta.ID, meta.Name, meta.Format, formatDuration(meta.Duration))
			return nil
		})
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recordings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "List", func(ctx context.Context, a *app.VRecApp) error {
			recs, err := a.List(ctx)
			if err != nil {
				return err
			}

			if len(recs) == 0 {
				fmt.Println("No recordings.")
				return nil
			}

			for _, m := range recs {
				shared := " "
				if m.IsPublic {
					shared = "S"
				}
				fmt.Printf("%s  %s  %s  %-10s  %s\n",
					m.ID,
					shared,
					m.CreatedAt.Local().Format("2006-01-02 15:04"),
					formatDuration(m.Duration),
					m.Name,
				)
			}
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Show", func(ctx context.Context, a *app.VRecApp) error {
			meta, err := a.Show(ctx, args[0])
			if err != nil {
				return err
			}
			printRecording(meta)
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename a recording",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Rename", func(ctx context.Context, a *app.VRecApp) error {
			meta, err := a.Rename(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Renamed %s to %s\n", meta.ID, meta.Name)
			return nil
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe ID TEXT",
	Short: "Set a recording's description",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Describe", func(ctx context.Context, a *app.VRecApp) error {
			meta, err := a.Describe(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Updated %s\n", meta.ID)
			return nil
		})
	},
}

// share commands
var shareCmd = &cobra.Command{
	Use:   "share ID",
	Short: "Issue a share token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		return withApp(cmd, "ShareLink", func(ctx context.Context, a *app.VRecApp) error {
			token, err := a.Share(ctx, args[0], days)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		})
	},
}

var unshareCmd = &cobra.Command{
	Use:   "unshare ID",
	Short: "Revoke a share token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "RevokeShareLink", func(ctx context.Context, a *app.VRecApp) error {
			if err := a.Unshare(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Recording %s is private\n", args[0])
			return nil
		})
	},
}

var sharedCmd = &cobra.Command{
	Use:   "shared TOKEN",
	Short: "Resolve a share token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Shared", func(ctx context.Context, a *app.VRecApp) error {
			meta, err := a.Shared(ctx, args[0])
			if err != nil {
				return err
			}
			printRecording(meta)
			return nil
		})
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe ID",
	Short: "Transcribe a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Transcribe", func(ctx context.Context, a *app.VRecApp) error {
			meta, err := a.Transcribe(ctx, args[0])
			if err != nil {
				return err
			}
			if meta.Transcription != nil {
				fmt.Println(*meta.Transcription)
			}
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Write a recording's audio to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		return withApp(cmd, "Export", func(ctx context.Context, a *app.VRecApp) error {
			path, err := a.Export(ctx, args[0], out)
			if err != nil {
				return err
			}
			fmt.Printf("Exported to %s\n", path)
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm [ID]",
	Short: "Delete a recording, or all of them with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("give either a recording ID or --all")
		}

		if !all {
			return withApp(cmd, "Delete", func(ctx context.Context, a *app.VRecApp) error {
				if err := a.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", args[0])
				return nil
			})
		}

		return withApp(cmd, "DeleteAll", func(ctx context.Context, a *app.VRecApp) error {
			report, err := a.DeleteAll(ctx)
			if report != nil {
				fmt.Printf("Deleted %d recording(s)\n", len(report.Deleted))
				for id, ferr := range report.Failed {
					fmt.Fprintf(os.Stderr, "failed %s: %v\n", id, ferr)
				}
			}
			return err
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Stats", func(ctx context.Context, a *app.VRecApp) error {
			s, err := a.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Recordings: %d\n", s.Count)
			fmt.Printf("Duration:   %s\n", formatDuration(s.TotalDuration))
			fmt.Printf("Size:       %d bytes\n", s.TotalSize)
			return nil
		})
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, "GetHistory", func(ctx context.Context, a *app.VRecApp) error {
			ops, err := a.History(ctx, limit)
			if err != nil {
				return err
			}

			if len(ops) == 0 {
				fmt.Println("No operations recorded.")
				return nil
			}

			for _, op := range ops {
				duration := ""
				if op.FinishedAt.Valid {
					d := op.FinishedAt.Time.Sub(op.StartedAt)
					duration = d.Truncate(time.Millisecond).String()
				}
				fmt.Printf("#%d  %-15s  %s  %-7s  %-10s  %s\n",
					op.ID,
					op.Operation,
					op.StartedAt.Format("2006-01-02 15:04:05"),
					op.Status,
					duration,
					op.Parameters,
				)
			}
			return nil
		})
	},
}

// profile commands
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the owner profile",
}

func printProfile(p *vr.Profile) {
	fmt.Printf("Owner:    %s\n", p.OwnerID)
	fmt.Printf("Name:     %s\n", p.DisplayName)
	fmt.Printf("Email:    %s\n", p.Email)
	fmt.Printf("Language: %s\n", p.Language)
	fmt.Printf("Theme:    %s\n", p.Theme)
	if p.Version() != 0 {
		fmt.Printf("Updated:  %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "GetProfile", func(ctx context.Context, a *app.VRecApp) error {
			p, err := a.Profile(ctx)
			if err != nil {
				return err
			}
			printProfile(p)
			return nil
		})
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change profile fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		var upd vr.ProfileUpdate
		flagValue := func(name string) *string {
			if !cmd.Flags().Changed(name) {
				return nil
			}
			v, _ := cmd.Flags().GetString(name)
			return &v
		}
		upd.DisplayName = flagValue("display-name")
		upd.Email = flagValue("email")
		upd.Language = flagValue("language")
		upd.Theme = flagValue("theme")

		return withApp(cmd, "UpdateProfile", func(ctx context.Context, a *app.VRecApp) error {
			p, err := a.UpdateProfile(ctx, upd)
			if err != nil {
				return err
			}
			printProfile(p)
			return nil
		})
	},
}

var profileSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the profile to the sync vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "SyncProfile", func(ctx context.Context, a *app.VRecApp) error {
			version, err := a.SyncProfile(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Profile synced (version %d)\n", version)
			return nil
		})
	},
}

var profilePullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Adopt a newer profile from the sync vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "PullProfile", func(ctx context.Context, a *app.VRecApp) error {
			p, changed, err := a.PullProfile(ctx)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Println("Profile is up to date.")
				return nil
			}
			printProfile(p)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().String("owner", "", "Owner ID (default: owner_id from config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Encrypt recordings with a passphrase-protected age key")

	// recording commands
	saveCmd.Flags().String("name", "", "Recording name (default: file name)")
	saveCmd.Flags().String("description", "", "Recording description")
	saveCmd.Flags().Float64("duration", 0, "Duration in seconds")
	saveCmd.Flags().String("format", "audio/webm", "MIME type of the audio")
	uploadCmd.Flags().String("name", "", "Recording name (default: file name)")
	uploadCmd.Flags().String("description", "", "Recording description")
	uploadCmd.Flags().String("format", "", "MIME type of the audio (default: detected)")
	shareCmd.Flags().IntP("days", "d", 7, "Days until the token expires (0 = never)")
	exportCmd.Flags().StringP("out", "o", "", "Output path (default: <name>.<ext> in the current directory)")
	rmCmd.Flags().Bool("all", false, "Delete every recording of the owner")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")

	// profile subcommands
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileSyncCmd)
	profileCmd.AddCommand(profilePullCmd)
	profileSetCmd.Flags().String("display-name", "", "Display name")
	profileSetCmd.Flags().String("email", "", "Email address (empty clears it)")
	profileSetCmd.Flags().String("language", "", "Language: en or th")
	profileSetCmd.Flags().String("theme", "", "Theme: light, dark or system")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(unshareCmd)
	rootCmd.AddCommand(sharedCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(profileCmd)
}
