package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ayush/thunder-dashboard/backend/internal/client"
	"github.com/ayush/thunder-dashboard/backend/internal/realtime"
	"github.com/ayush/thunder-dashboard/backend/internal/report"
	"github.com/ayush/thunder-dashboard/backend/internal/upload"
)

const usage = `usage: thunder <command> [flags]

commands:
  login     -email E -password P          sign in and remember the session
  subjects  [-create NAME]                 list or create subjects
  items     -subject ID                    list files and their processing status
  upload    -subject ID FILE...            upload PDFs and lecture recordings
  generate  -subject ID [-window W] ID...  generate a report over sessions
  report    [-pdf OUT] SESSION_ID          show the report of a session
  watch     -subject ID                    follow status changes live

environment:
  THUNDER_API  API base URL (default http://localhost:8080)
`

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(getenv("THUNDER_API", "http://localhost:8080"))
	if err != nil {
		fatal(err)
	}
	if sid, err := loadSession(); err == nil {
		c.SetSession(sid)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "login":
		err = runLogin(ctx, c, args)
	case "subjects":
		err = runSubjects(ctx, c, args)
	case "items":
		err = runItems(ctx, c, args)
	case "upload":
		err = runUpload(ctx, c, args)
	case "generate":
		err = runGenerate(ctx, c, args)
	case "report":
		err = runReport(ctx, c, args)
	case "watch":
		err = runWatch(ctx, c, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			fatal(errors.New("not signed in: run `thunder login` first"))
		}
		fatal(err)
	}
}

func runLogin(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", os.Getenv("THUNDER_EMAIL"), "account email")
	password := fs.String("password", os.Getenv("THUNDER_PASSWORD"), "account password")
	fs.Parse(args)

	user, err := c.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := saveSession(c.Session()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Printf("Signed in as %s\n", user.Email)
	return nil
}

func runSubjects(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("subjects", flag.ExitOnError)
	create := fs.String("create", "", "name of a subject to create")
	fs.Parse(args)

	if *create != "" {
		sub, err := c.CreateSubject(ctx, *create)
		if err != nil {
			return err
		}
		fmt.Printf("Created subject %s (%s)\n", sub.Name, sub.ID)
		return nil
	}
	subjects, err := c.Subjects(ctx)
	if err != nil {
		return err
	}
	fmt.Print(renderSubjects(subjects))
	return nil
}

func runItems(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("items", flag.ExitOnError)
	subject := fs.String("subject", "", "subject id")
	fs.Parse(args)
	if *subject == "" {
		return errors.New("-subject is required")
	}

	items, err := c.Items(ctx, *subject)
	if err != nil {
		return err
	}
	fmt.Print(renderItems(items))
	return nil
}

func runUpload(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	subject := fs.String("subject", "", "subject id")
	fs.Parse(args)
	if *subject == "" || fs.NArg() == 0 {
		return errors.New("usage: thunder upload -subject ID FILE...")
	}

	files := make([]upload.File, 0, fs.NArg())
	for _, name := range fs.Args() {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		files = append(files, upload.File{Name: filepath.Base(name), ContentType: contentType(name, data), Data: data})
	}

	o := upload.NewOrchestrator(c, upload.NewHTTPPutter(), c)
	results, err := o.Upload(ctx, *subject, files)
	for _, r := range results {
		if r.Skipped {
			fmt.Println(dimStyle.Render("skipped " + r.File + " (not a PDF or audio file)"))
			continue
		}
		fmt.Printf("uploaded %s as %s %s\n", r.File, r.Kind, r.RecordID)
	}
	return err
}

func runGenerate(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	subject := fs.String("subject", "", "subject id")
	window := fs.String("window", "", "exam window (default from server)")
	fs.Parse(args)
	if *subject == "" {
		return errors.New("-subject is required")
	}

	if err := c.Generate(ctx, *subject, fs.Args(), *window); err != nil {
		return err
	}
	fmt.Printf("Report generation started for %d session(s)\n", fs.NArg())
	return nil
}

func runReport(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	out := fs.String("pdf", "", "write the report as PDF to this file")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: thunder report [-pdf OUT] SESSION_ID")
	}
	sessionID := fs.Arg(0)

	if *out != "" {
		if err := savePDF(ctx, c, sessionID, *out); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", *out)
		return nil
	}

	viewer := report.NewViewer(c)
	if err := viewer.Open(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to load report: %s", viewer.Err())
	}
	v, _ := viewer.View()
	fmt.Print(renderReport("", v))
	return nil
}

type pdfDownloader interface {
	DownloadReportPDF(ctx context.Context, sessionID string, w io.Writer) error
}

// savePDF downloads into a temp file next to dst and renames it into place,
// so a failed download leaves nothing behind.
func savePDF(ctx context.Context, d pdfDownloader, sessionID, dst string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".thunder-report-*.pdf")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := d.DownloadReportPDF(ctx, sessionID, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func runWatch(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	subject := fs.String("subject", "", "subject id")
	fs.Parse(args)
	if *subject == "" {
		return errors.New("-subject is required")
	}

	fmt.Println(dimStyle.Render("commands: t ID (select), d ID (delete), g [WINDOW] (generate), r (refresh), q (quit)"))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmds := make(chan realtime.Command)
	go readCommands(ctx, cancel, cmds)

	return c.Watch(ctx, *subject, cmds, func(f realtime.Frame) {
		switch f.Type {
		case realtime.FrameView:
			fmt.Print("\033[H\033[2J")
			fmt.Print(renderItems(f.Items))
		case realtime.FrameNotice:
			fmt.Print(renderNotice(f.Message))
		}
	})
}

func readCommands(ctx context.Context, cancel context.CancelFunc, out chan<- realtime.Command) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		cmd, ok := parseCommand(sc.Text())
		if !ok {
			if strings.TrimSpace(sc.Text()) == "q" {
				cancel()
				return
			}
			continue
		}
		select {
		case out <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// parseCommand turns a line typed during watch into a viewer command.
func parseCommand(line string) (realtime.Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return realtime.Command{}, false
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case "t":
		return realtime.Command{Type: realtime.CmdToggle, ID: arg}, arg != ""
	case "d":
		return realtime.Command{Type: realtime.CmdDelete, ID: arg}, arg != ""
	case "g":
		return realtime.Command{Type: realtime.CmdGenerate, ExamWindow: arg}, true
	case "r":
		return realtime.Command{Type: realtime.CmdRefresh}, true
	}
	return realtime.Command{}, false
}

// contentType guesses from the extension first and the bytes second.
func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func sessionFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "thunder", "session"), nil
}

func loadSession() (string, error) {
	if sid := os.Getenv("THUNDER_SESSION"); sid != "" {
		return sid, nil
	}
	p, err := sessionFile()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func saveSession(sid string) error {
	if sid == "" {
		return errors.New("server did not return a session")
	}
	p, err := sessionFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(sid+"\n"), 0o600)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
