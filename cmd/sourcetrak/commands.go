package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/iliyamo/sourcetrak/internal/apiclient"
	"github.com/iliyamo/sourcetrak/internal/database"
	"github.com/iliyamo/sourcetrak/internal/entry"
	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/qr"
	"github.com/iliyamo/sourcetrak/internal/record"
	"github.com/iliyamo/sourcetrak/internal/repository"
	"github.com/iliyamo/sourcetrak/internal/service"
	"github.com/iliyamo/sourcetrak/internal/session"
)

var errNotSignedIn = errors.New("not signed in")

func (a *app) user() (model.User, error) {
	u, ok := a.store.CurrentUser()
	if !ok {
		return model.User{}, errNotSignedIn
	}
	return u, nil
}

// readPassword takes the password from the flag or, when empty, from the
// first line of stdin.
func readPassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printUser(u model.User) {
	fmt.Printf("%s <%s> (%s) id=%s\n", u.Name, u.Email, u.Role, u.ID)
}

func cmdSignup(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when empty)")
	confirm := fs.String("confirm", "", "password confirmation (defaults to -password)")
	role := fs.String("role", "", "Farmer, Producer, Logistics or Retailer")
	fs.Parse(args)

	pw, err := readPassword(*password)
	if err != nil {
		return err
	}
	if *confirm == "" {
		*confirm = pw
	}
	u, err := a.store.Signup(ctx, session.SignupData{
		Name:            *name,
		Email:           *email,
		Password:        pw,
		ConfirmPassword: *confirm,
		Role:            *role,
	})
	if err != nil {
		return errors.New(apiclient.Message(err, "An unexpected error occurred. Please try again."))
	}
	fmt.Print("signed up as ")
	printUser(u)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when empty)")
	fs.Parse(args)

	if *email == "" {
		return errors.New("-email is required")
	}
	pw, err := readPassword(*password)
	if err != nil {
		return err
	}
	u, err := a.store.Login(ctx, *email, pw)
	if err != nil {
		return errors.New(apiclient.Message(err, "Login failed"))
	}
	fmt.Print("signed in as ")
	printUser(u)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	out := a.store.Logout(ctx)
	if !out.OK() {
		fmt.Println("signed out locally (backend did not acknowledge)")
		return nil
	}
	fmt.Println("signed out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	u, err := a.user()
	if err != nil {
		return err
	}
	printUser(u)
	return nil
}

func cmdSubmit(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	batch := fs.String("batch", "", "batch to add to (farmers may omit it to start a new batch)")
	values := map[string]*string{
		entry.FieldFarmName:            fs.String("farm-name", "", "farm name"),
		entry.FieldLocationCoordinates: fs.String("location", "", "location coordinates"),
		entry.FieldHarvestDate:         fs.String("harvest-date", "", "harvest date (YYYY-MM-DD)"),
		entry.FieldProductType:         fs.String("product", "", "product type"),
		entry.FieldFarmingMethod:       fs.String("method", "", "farming method: "+strings.Join(entry.FarmingMethods, ", ")),
		entry.FieldCertifications:      fs.String("certifications", "", "certifications: "+strings.Join(entry.Certifications, ", ")),
	}
	fs.Parse(args)

	u, err := a.user()
	if err != nil {
		return err
	}
	if *batch != "" {
		if err := service.CheckEligible(ctx, a.api, *batch, u); err != nil {
			if errors.Is(err, service.ErrNotEligible) {
				return err
			}
			return errors.New(apiclient.Message(err, "Failed to get batch data"))
		}
	}
	flow := entry.NewFlow(a.api, u, *batch)
	for field, v := range values {
		if err := flow.Set(field, *v); err != nil {
			return err
		}
	}
	vm, err := flow.Submit(ctx)
	if err != nil {
		if msg := flow.Message(); msg != "" {
			return errors.New(msg)
		}
		return err
	}

	if db, err := a.openCache(ctx); err == nil {
		service.NewHistoryService(a.api, repository.NewEntryCache(db)).Remember(ctx, u, vm)
		db.Close()
	}

	fmt.Printf("recorded %s on batch %s (%s)\n", vm.ID, vm.BatchID, vm.Status)
	fmt.Println("tx:", vm.TxHash)
	if link := record.ExplorerURL(vm.TxHash); link != "" {
		fmt.Println("explorer:", link)
	}
	fmt.Println("share:", qr.BuildShareURL(vm, a.cfg.PublicOrigin))
	return nil
}

func (a *app) loadBatch(ctx context.Context, id string) (service.BatchView, error) {
	if strings.TrimSpace(id) == "" {
		return service.BatchView{}, errors.New("batch id is required")
	}
	var viewer *model.User
	if u, ok := a.store.CurrentUser(); ok {
		viewer = &u
	}
	loader := service.NewBatchLoader(a.api, service.NewUserDirectory(a.api, nil, 0))
	bv, err := loader.Load(ctx, id, viewer)
	if err != nil {
		if errors.Is(err, record.ErrEmptyBatch) {
			return bv, err
		}
		return bv, errors.New(apiclient.Message(err, "Failed to get batch data"))
	}
	return bv, nil
}

func cmdBatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print the batch view as JSON")
	fs.Parse(args)

	bv, err := a.loadBatch(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(bv)
	}

	p := bv.Primary
	fmt.Printf("batch %s\n", p.BatchID)
	fmt.Printf("  %s, %s (%s)\n", p.ProductType, p.FarmName, p.LocationCoordinates)
	fmt.Printf("  harvested %s, %s, %s\n", p.HarvestDate, p.FarmingMethod, p.Certifications)
	fmt.Printf("  status %s, tx %s\n", p.Status, p.TxHash)
	if link := record.ExplorerURL(p.TxHash); link != "" {
		fmt.Println("  explorer", link)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nEVENT\tROLE\tUSER\tCREATED")
	for _, h := range bv.History {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.EventID, h.UserRole, h.UserName, h.CreatedAt)
	}
	tw.Flush()
	if bv.CanAddData {
		fmt.Printf("\nyou can add data: sourcetrak submit -batch %s ...\n", p.BatchID)
	}
	return nil
}

func cmdHistory(ctx context.Context, a *app, args []string) error {
	u, err := a.user()
	if err != nil {
		return err
	}
	var store service.EntryStore
	if db, err := a.openCache(ctx); err == nil {
		defer db.Close()
		store = repository.NewEntryCache(db)
	}
	d, err := service.NewHistoryService(a.api, store).Dashboard(ctx, u)
	if err != nil {
		return errors.New(apiclient.Message(err, "Failed to get user history"))
	}
	if d.Offline {
		fmt.Println("backend unreachable; showing locally cached entries")
	}
	fmt.Printf("entries %d, verified %d, products %d, farms %d\n",
		d.Stats.TotalEntries, d.Stats.VerifiedEntries, d.Stats.UniqueProducts, d.Stats.UniqueFarms)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tPRODUCT\tFARM\tHARVEST\tSTATUS")
	for _, vm := range d.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", vm.BatchID, vm.ProductType, vm.FarmName, vm.HarvestDate, vm.Status)
	}
	return tw.Flush()
}

func cmdQR(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("qr", flag.ExitOnError)
	size := fs.Int("size", qr.DefaultSize, "image size in pixels")
	dir := fs.String("out", ".", "directory to write the PNG to")
	fs.Parse(args)

	bv, err := a.loadBatch(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	p := qr.BuildPayload(bv.Primary, a.cfg.PublicOrigin)
	png, err := qr.RenderPNG(p, *size)
	if err != nil {
		return err
	}
	path := filepath.Join(*dir, qr.DownloadName(p.BatchID))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return err
	}
	pretty, err := p.Pretty()
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	fmt.Println("wrote", path)
	return nil
}

func cmdShare(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	fs.Parse(args)

	bv, err := a.loadBatch(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	link := qr.BuildShareURL(bv.Primary, a.cfg.PublicOrigin)
	err = qr.Share(link, qr.ClipboardCopier{}, qr.WriterCopier{W: os.Stdout})
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "share link ready:", link)
	return nil
}

// openCache opens the local entry cache; callers treat failure as "no cache".
func (a *app) openCache(ctx context.Context) (*sql.DB, error) {
	if a.cfg.CacheDB.Driver == "sqlite" {
		if err := os.MkdirAll(a.cfg.StateDir, 0o700); err != nil {
			return nil, err
		}
	}
	db, err := database.Open(a.cfg.CacheDB.Driver, a.cfg.CacheDB.DSN)
	if err != nil {
		return nil, err
	}
	if err := repository.EnsureSchema(ctx, db, a.cfg.CacheDB.Driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
