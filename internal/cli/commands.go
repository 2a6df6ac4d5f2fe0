package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/lazypower/drift/internal/client"
	"github.com/lazypower/drift/internal/store"
)

func init() {
	// Post flags
	postCmd.Flags().Int64VarP(&postGenerator, "generator", "g", 0, "Generator id (required)")
	postCmd.Flags().StringVar(&postBody, "body", "", "Body text")
	postCmd.Flags().StringVar(&postImage, "image", "", "Image reference")
	postCmd.Flags().StringVar(&postLink, "link", "", "External \"more\" link")
	postCmd.MarkFlagRequired("generator")

	// Saved flags
	savedCmd.Flags().StringSliceVarP(&savedReactions, "reactions", "r", nil, "Reactions to include (like, dislike, heart)")
	savedCmd.Flags().IntVarP(&savedLimit, "limit", "n", 20, "Maximum number of results")
	savedCmd.Flags().IntVar(&savedOffset, "offset", 0, "Skip this many results")

	// Scroll flags
	scrollCmd.Flags().IntVarP(&scrollPages, "pages", "p", 1, "Number of pages to fetch (0 = until the end)")
	scrollCmd.Flags().IntVar(&scrollPageSize, "page-size", 0, "Posts per page (default from config)")
	scrollCmd.Flags().IntVar(&scrollMaxItems, "max-items", 0, "Posts kept in memory (default from config)")
	scrollCmd.Flags().BoolVar(&scrollNoEpoch, "no-epoch", false, "Rank every page afresh instead of pinning the session start")
	scrollCmd.Flags().BoolVar(&scrollMarkSeen, "mark-seen", false, "Mark every shown post as seen")

	// Generator flags
	generatorsAddCmd.Flags().StringVar(&genType, "type", "text", "Generator type (feed, text, picture)")
	generatorsAddCmd.Flags().StringVar(&genConfig, "config-json", "", "Opaque generator config as JSON")
	generatorsRenameCmd.Flags().StringVar(&genConfig, "config-json", "", "Replace the generator config with this JSON")
	generatorsCmd.AddCommand(generatorsAddCmd)
	generatorsCmd.AddCommand(generatorsRenameCmd)
	generatorsCmd.AddCommand(generatorsRmCmd)
}

// apiClient loads config and returns a client for the configured server.
func apiClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return client.New(cfg.Client.URL), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", s)
	}
	return id, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- post command ---

var (
	postGenerator int64
	postBody      string
	postImage     string
	postLink      string
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create a post",
	RunE:  runPost,
}

func runPost(cmd *cobra.Command, args []string) error {
	if postBody == "" && postImage == "" {
		return fmt.Errorf("a post needs --body or --image")
	}
	c, err := apiClient()
	if err != nil {
		return err
	}
	id, err := c.CreatePost(cmd.Context(), client.NewPost{
		GeneratorID: postGenerator,
		Body:        optional(postBody),
		ImageURL:    optional(postImage),
		MoreLink:    optional(postLink),
	})
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	fmt.Printf("created post %d\n", id)
	return nil
}

// --- seen command ---

var seenCmd = &cobra.Command{
	Use:   "seen [post-id...]",
	Short: "Mark posts as seen",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSeen,
}

func runSeen(cmd *cobra.Command, args []string) error {
	c, err := apiClient()
	if err != nil {
		return err
	}
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		if err := c.MarkSeen(cmd.Context(), id); err != nil {
			return fmt.Errorf("mark seen %d: %w", id, err)
		}
	}
	return nil
}

// --- react command ---

var reactCmd = &cobra.Command{
	Use:   "react [post-id] [none|like|dislike|heart]",
	Short: "Set or clear the reaction on a post",
	Args:  cobra.ExactArgs(2),
	RunE:  runReact,
}

func runReact(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	reaction, err := store.ParseReaction(args[1])
	if err != nil {
		return err
	}
	c, err := apiClient()
	if err != nil {
		return err
	}
	if err := c.React(cmd.Context(), id, string(reaction)); err != nil {
		return fmt.Errorf("react: %w", err)
	}
	return nil
}

// --- saved command ---

var (
	savedReactions []string
	savedLimit     int
	savedOffset    int
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List reacted-to posts, most recent first",
	RunE:  runSaved,
}

func runSaved(cmd *cobra.Command, args []string) error {
	c, err := apiClient()
	if err != nil {
		return err
	}
	sp, err := c.Saved(cmd.Context(), savedReactions, savedLimit, savedOffset)
	if err != nil {
		return fmt.Errorf("saved: %w", err)
	}
	if len(sp.Page) == 0 {
		fmt.Println("No saved posts.")
		return nil
	}
	for _, p := range sp.Page {
		printPost(p)
	}
	if sp.Next != nil {
		fmt.Printf("-- next: --offset %d\n", *sp.Next)
	}
	return nil
}

// --- scroll command ---

var (
	scrollPages    int
	scrollPageSize int
	scrollMaxItems int
	scrollNoEpoch  bool
	scrollMarkSeen bool
)

var scrollCmd = &cobra.Command{
	Use:   "scroll",
	Short: "Scroll through the ranked feed",
	Long:  "Fetch feed pages one at a time, following the cursor, and print each post. Memory is bounded by --max-items.",
	RunE:  runScroll,
}

func runScroll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pageSize, maxItems := cfg.Client.PageSize, cfg.Client.MaxItems
	if scrollPageSize > 0 {
		pageSize = scrollPageSize
	}
	if scrollMaxItems > 0 {
		maxItems = scrollMaxItems
	}

	c := client.New(cfg.Client.URL)
	var opts []client.SessionOption
	if scrollNoEpoch {
		opts = append(opts, client.WithoutEpoch())
	}
	sess := client.NewSession(c, client.NewBuffer(pageSize, maxItems), opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	shown := 0
	for page := 0; scrollPages <= 0 || page < scrollPages; page++ {
		before := sess.Buffer().Len() + sess.Buffer().Evicted()
		ok, err := sess.LoadMore(ctx)
		if err != nil {
			if client.IsRetryable(err) {
				return fmt.Errorf("fetch page %d (retryable): %w", page+1, err)
			}
			return fmt.Errorf("fetch page %d: %w", page+1, err)
		}
		if !ok {
			break
		}
		items := sess.Buffer().Items()
		fresh := sess.Buffer().Len() + sess.Buffer().Evicted() - before
		for _, p := range items[max(len(items)-fresh, 0):] {
			printPost(p)
			if scrollMarkSeen {
				if err := c.MarkSeen(ctx, p.ID); err != nil {
					return fmt.Errorf("mark seen %d: %w", p.ID, err)
				}
			}
		}
		shown += fresh
	}

	fmt.Printf("-- %d posts shown, %d retained", shown, sess.Buffer().Len())
	if !sess.Buffer().HasMore() {
		fmt.Print(", end of feed")
	}
	fmt.Println()
	return nil
}

func printPost(p client.Post) {
	fmt.Printf("#%d [%s] %s", p.ID, p.GeneratorName, p.Timestamp.Local().Format(time.DateTime))
	if p.SeenCount > 0 {
		fmt.Printf(" seen=%d", p.SeenCount)
	}
	if p.Reaction != "" && p.Reaction != string(store.ReactionNone) {
		fmt.Printf(" %s", p.Reaction)
	}
	fmt.Println()
	if p.Body != nil {
		fmt.Printf("   %s\n", truncate(*p.Body, 200))
	}
	if p.ImageURL != nil {
		fmt.Printf("   image: %s\n", *p.ImageURL)
	}
	if p.MoreLink != nil {
		fmt.Printf("   more: %s\n", *p.MoreLink)
	}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// --- generators command ---

var (
	genType   string
	genConfig string
)

var generatorsCmd = &cobra.Command{
	Use:   "generators",
	Short: "List registered generators",
	RunE:  runGenerators,
}

var generatorsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Register a generator",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGeneratorsAdd,
}

var generatorsRenameCmd = &cobra.Command{
	Use:   "rename [id] [name]",
	Short: "Rename a generator; existing posts keep the old name",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runGeneratorsRename,
}

var generatorsRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove a generator that has no posts",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeneratorsRm,
}

// Generators are managed on the local database directly so they can be
// registered before the server first starts.
func runGenerators(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	gens, err := db.ListGenerators(cmd.Context())
	if err != nil {
		return err
	}
	if len(gens) == 0 {
		fmt.Println("No generators registered.")
		return nil
	}
	for _, g := range gens {
		fmt.Printf("%d. %s (%s) %s\n", g.ID, g.Name, g.Type, g.Config)
	}
	return nil
}

func runGeneratorsAdd(cmd *cobra.Command, args []string) error {
	valid := false
	for _, t := range store.GeneratorTypes {
		if genType == t {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("type must be one of: %s", strings.Join(store.GeneratorTypes, ", "))
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	g := &store.Generator{Name: strings.Join(args, " "), Type: genType}
	if genConfig != "" {
		g.Config = json.RawMessage(genConfig)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if err := db.CreateGenerator(ctx, g); err != nil {
		return err
	}
	fmt.Printf("registered generator %d\n", g.ID)
	return nil
}

func runGeneratorsRename(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid generator id %q", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	var config json.RawMessage
	if genConfig != "" {
		config = json.RawMessage(genConfig)
	}
	g, err := db.UpdateGenerator(cmd.Context(), id, strings.Join(args[1:], " "), config)
	if err != nil {
		return err
	}
	fmt.Printf("generator %d is now %q\n", g.ID, g.Name)
	return nil
}

func runGeneratorsRm(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid generator id %q", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := db.DeleteGenerator(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("removed generator %d\n", id)
	return nil
}
