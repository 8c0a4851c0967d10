package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"bm-go/internal/app"
	"bm-go/internal/bundle"
	"bm-go/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a BundleApp. The caller must defer app.Close().
func newApp() (*app.BundleApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	a, err := app.NewBundleApp(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "bm",
	Short: "Bundle archive manager",
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
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
		fmt.Printf("Base Dir:        %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:         %s\n", cfg.LogDir)
		fmt.Printf("Database:        %s\n", cfg.Database.Type)
		fmt.Printf("Private Storage: %s\n", cfg.PrivateStorage.Type)
		fmt.Printf("Public Storage:  %s\n", cfg.PublicStorage.Type)
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.CreateUser(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("User created: %s (%s)\n", u.Name, u.ID)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import TYPE FILE",
	Short: "Import a rack, preset, or session file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		title, _ := cmd.Flags().GetString("title")
		public, _ := cmd.Flags().GetBool("public")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.ImportContentItem(args[0], userID, title, args[1], public)
		if err != nil {
			return fmt.Errorf("importing %s: %w", args[0], err)
		}

		fmt.Printf("Imported %s: %s (%s)\n", item.Type, item.Title, item.ID)
		return nil
	},
}

// create command
var createCmd = &cobra.Command{
	Use:   "create TITLE",
	Short: "Create a bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		description, _ := cmd.Flags().GetString("description")
		bundleType, _ := cmd.Flags().GetString("type")
		genre, _ := cmd.Flags().GetString("genre")
		category, _ := cmd.Flags().GetString("category")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		free, _ := cmd.Flags().GetBool("free")
		allowDownloads, _ := cmd.Flags().GetBool("allow-downloads")
		article, _ := cmd.Flags().GetString("article")
		cover, _ := cmd.Flags().GetString("cover")
		preview, _ := cmd.Flags().GetString("preview")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.CreateBundle(bundle.NewBundle{
			UserID:                   userID,
			Title:                    args[0],
			Description:              description,
			BundleType:               bundleType,
			Genre:                    genre,
			Category:                 category,
			DifficultyLevel:          difficulty,
			IsFree:                   free,
			AllowIndividualDownloads: allowDownloads,
			HowToArticle:             article,
			CoverImagePath:           cover,
			PreviewAudioPath:         preview,
		}, nil)
		if err != nil {
			return err
		}

		fmt.Printf("Bundle created: %s\n", b.Title)
		fmt.Printf("ID:   %s\n", b.ID)
		fmt.Printf("Slug: %s\n", b.Slug)
		return nil
	},
}

// item command
var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage bundle items",
}

var itemAddCmd = &cobra.Command{
	Use:   "add BUNDLE TYPE ITEM_ID",
	Short: "Attach a content item to a bundle",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		position, _ := cmd.Flags().GetInt("position")
		section, _ := cmd.Flags().GetString("section")
		notes, _ := cmd.Flags().GetString("notes")
		required, _ := cmd.Flags().GetBool("required")
		downloadable, _ := cmd.Flags().GetBool("downloadable")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		bi, err := a.AddItem(args[0], bundle.NewItem{
			Type:         args[1],
			ID:           args[2],
			Position:     position,
			Section:      section,
			Notes:        notes,
			IsRequired:   required,
			Downloadable: downloadable,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Item attached: %s (position %d)\n", bi.ID, bi.Position)
		return nil
	},
}

var itemRemoveCmd = &cobra.Command{
	Use:   "remove BUNDLE BUNDLE_ITEM_ID",
	Short: "Detach an item from a bundle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveItem(args[0], args[1]); err != nil {
			return err
		}

		fmt.Println("Item removed.")
		return nil
	},
}

var itemReorderCmd = &cobra.Command{
	Use:   "reorder BUNDLE ITEM_ID=POSITION...",
	Short: "Reposition bundle items",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		positions := make(map[string]int)
		for _, arg := range args[1:] {
			id, pos, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("invalid position assignment: %s", arg)
			}
			n, err := strconv.Atoi(pos)
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", pos, err)
			}
			positions[id] = n
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ReorderItems(args[0], positions); err != nil {
			return err
		}

		fmt.Printf("Repositioned %d item(s)\n", len(positions))
		return nil
	},
}

var itemURLCmd = &cobra.Command{
	Use:   "url BUNDLE BUNDLE_ITEM_ID",
	Short: "Get a temporary download URL for a bundle item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		url, err := a.ItemURL(args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Println(url)
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage bundle archives",
}

var archiveBuildCmd = &cobra.Command{
	Use:   "build BUNDLE",
	Short: "Build the bundle's ZIP archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.BuildArchive(args[0], force)
		if err != nil {
			return fmt.Errorf("building archive: %w", err)
		}

		fmt.Printf("Archive built: %s\n", b.ArchivePath)
		fmt.Printf("Size: %d bytes\n", b.ArchiveSize)
		fmt.Printf("Hash: %s\n", b.ArchiveHash)
		return nil
	},
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download BUNDLE",
	Short: "Download a bundle archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if out != "" {
			if err := a.DownloadToFile(args[0], out); err != nil {
				return err
			}
			fmt.Printf("Archive written to %s\n", out)
			return nil
		}

		url, err := a.DownloadURL(args[0])
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List bundles",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		bundles, err := a.ListBundles(limit)
		if err != nil {
			return err
		}

		if len(bundles) == 0 {
			fmt.Println("No bundles.")
			return nil
		}

		for _, b := range bundles {
			archive := "stale"
			if b.ArchiveUpdatedAt != nil && !b.ArchiveUpdatedAt.Before(b.UpdatedAt) {
				archive = "fresh"
			}
			fmt.Printf("%-36s  %-30s  %2d item(s)  archive:%s\n", b.ID, b.Slug, b.TotalItemsCount, archive)
		}
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View bundle statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Statistics()
		if err != nil {
			return err
		}

		fmt.Printf("Bundles:   %d total, %d public, %d featured\n",
			stats.TotalBundles, stats.PublicBundles, stats.FeaturedBundles)
		fmt.Printf("Downloads: %d\n", stats.TotalDownloads)
		if len(stats.BundlesByType) > 0 {
			fmt.Println("By type:")
			for bundleType, count := range stats.BundlesByType {
				fmt.Printf("  %-12s %d\n", bundleType, count)
			}
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// user subcommands
	userCmd.AddCommand(userAddCmd)

	// item subcommands
	itemCmd.AddCommand(itemAddCmd)
	itemAddCmd.Flags().IntP("position", "p", 0, "Position within the bundle")
	itemAddCmd.Flags().String("section", "", "Section label")
	itemAddCmd.Flags().String("notes", "", "Notes shown alongside the item")
	itemAddCmd.Flags().Bool("required", false, "Mark the item as required")
	itemAddCmd.Flags().Bool("downloadable", false, "Allow individual download")
	itemCmd.AddCommand(itemRemoveCmd)
	itemCmd.AddCommand(itemReorderCmd)
	itemCmd.AddCommand(itemURLCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveBuildCmd)
	archiveBuildCmd.Flags().BoolP("force", "f", false, "Rebuild even if the archive is current")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringP("user", "u", "", "Owning user ID")
	importCmd.Flags().StringP("title", "t", "", "Item title")
	importCmd.Flags().Bool("public", false, "Make the item publicly visible")
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringP("user", "u", "", "Owning user ID")
	createCmd.Flags().StringP("description", "d", "", "Bundle description")
	createCmd.Flags().String("type", "", "Bundle type (default: production)")
	createCmd.Flags().String("genre", "", "Genre")
	createCmd.Flags().String("category", "", "Category")
	createCmd.Flags().String("difficulty", "", "Difficulty level (default: intermediate)")
	createCmd.Flags().Bool("free", false, "Mark the bundle as free")
	createCmd.Flags().Bool("allow-downloads", false, "Allow individual item downloads")
	createCmd.Flags().String("article", "", "How-to article text")
	createCmd.Flags().String("cover", "", "Cover image path in public storage")
	createCmd.Flags().String("preview", "", "Preview audio path in public storage")
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringP("out", "o", "", "Write the archive to a local file instead of printing a URL")
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntP("limit", "n", 50, "Maximum number of bundles to show")
	rootCmd.AddCommand(statsCmd)
}
