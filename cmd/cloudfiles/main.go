package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/paddlesteamer/cloudfiles/internal/auth"
	"github.com/paddlesteamer/cloudfiles/internal/common"
	"github.com/paddlesteamer/cloudfiles/internal/config"
	"github.com/paddlesteamer/cloudfiles/internal/drive"
	"github.com/paddlesteamer/cloudfiles/internal/manager"
	"golang.org/x/crypto/ssh/terminal"
)

func main() {
	var cfgDir string
	var provider string

	flag.StringVar(&cfgDir, "c", "", "Application config directory. Optional.")
	flag.StringVar(&provider, "p", "gdrive", "Storage provider: gdrive, dropbox or sftp.")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	cfg := loadConfig(cfgDir)
	m := newManager(cfg, provider)

	ctx := context.Background()
	surface := auth.Browser{}

	switch flag.Arg(0) {
	case "link":
		ensureLinked(ctx, m, surface)
		fmt.Printf("%s account linked\n", m.ProviderName())

	case "status":
		if m.IsLinked() {
			fmt.Println("linked")
		} else {
			fmt.Println("not linked")
		}

	case "fetch":
		ensureLinked(ctx, m, surface)

		md, found, err := m.Fetch(ctx)
		if err != nil {
			fatal(err)
		}

		if !found {
			fmt.Printf("no remote copy of '%s' yet\n", cfg.RemoteFile)
			return
		}

		fmt.Printf("id: %s\nsize: %d bytes\nmodified: %s\n", md.ID, md.Size, md.LastModified)

	case "upload":
		if flag.NArg() < 2 {
			usage()
		}

		data, err := os.ReadFile(flag.Arg(1))
		if err != nil {
			log.Fatalf("couldn't read local file: %v\n", err)
		}

		ensureLinked(ctx, m, surface)

		res, err := m.Upload(ctx, data)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("uploaded %d bytes, modified %s\n", res.Size, res.LastModified)

	case "download":
		if flag.NArg() < 2 {
			usage()
		}

		ensureLinked(ctx, m, surface)

		md, found, err := m.Fetch(ctx)
		if err != nil {
			fatal(err)
		}

		if !found {
			log.Fatalf("no remote copy of '%s' to download\n", cfg.RemoteFile)
		}

		data, err := m.Download(ctx, md.ID)
		if err != nil {
			fatal(err)
		}

		if err := os.WriteFile(flag.Arg(1), data, 0600); err != nil {
			log.Fatalf("couldn't write local file: %v\n", err)
		}

		fmt.Printf("downloaded %d bytes to %s\n", len(data), flag.Arg(1))

	case "unlink":
		m.Unlink()
		fmt.Printf("%s account unlinked\n", m.ProviderName())

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: cloudfiles [-c config dir] [-p provider] link|status|fetch|upload <file>|download <file>|unlink\n")
	os.Exit(2)
}

// fatal reports the failure, hinting at re-linking when the error is
// an authorization problem rather than a transport one.
func fatal(err error) {
	var derr *drive.Error

	switch {
	case errors.Is(err, drive.ErrMissingScopes):
		log.Fatalf("account isn't linked, run 'cloudfiles link' first\n")
	case errors.As(err, &derr) && (derr.Op == drive.OpSignIn || derr.Op == drive.OpAuthorize):
		log.Fatalf("couldn't link account: %v\n", derr.Err)
	default:
		log.Fatalf("%v\n", err)
	}
}

func ensureLinked(ctx context.Context, m *manager.Manager, surface auth.Surface) {
	if m.IsLinked() {
		return
	}

	if err := m.SignIn(ctx, surface); err != nil {
		fatal(err)
	}

	if err := m.Authorize(ctx, surface); err != nil {
		fatal(err)
	}
}

func loadConfig(cfgDir string) *config.Cfg {
	if !config.DoesConfigExist(cfgDir) {
		cfg := &config.Cfg{
			RemoteFile: common.DEFAULT_REMOTE_FILE,
			GDrive: &config.GDriveCredentials{
				APIKey:   common.GDRIVE_API_KEY,
				ClientID: common.GDRIVE_CLIENT_ID,
			},
			Dropbox: &config.DropboxCredentials{
				AppKey: common.DROPBOX_APP_KEY,
			},
		}

		if err := config.WriteConfig(cfgDir, cfg); err != nil {
			log.Fatalf("couldn't create config file: %v\n", err)
		}

		return cfg
	}

	cfg, err := config.ParseConfig(cfgDir)
	if err != nil {
		log.Fatal(err)
	}

	return cfg
}

func newManager(cfg *config.Cfg, provider string) *manager.Manager {
	switch provider {
	case "gdrive":
		if cfg.GDrive == nil {
			log.Fatalf("no gdrive credentials in config\n")
		}

		return manager.NewGDrive(cfg.GDrive, cfg.RemoteFile)

	case "dropbox":
		if cfg.Dropbox == nil {
			log.Fatalf("no dropbox credentials in config\n")
		}

		return manager.NewDropbox(cfg.Dropbox, cfg.RemoteFile)

	case "sftp":
		if cfg.SFTP == nil {
			log.Fatalf("no sftp mount in config\n")
		}

		if cfg.SFTP.Password == "" {
			fmt.Printf("password for %s@%s: ", cfg.SFTP.User, cfg.SFTP.Host)

			pwd, err := terminal.ReadPassword(int(syscall.Stdin))
			if err != nil {
				log.Fatalf("couldn't read password from terminal\n")
			}
			fmt.Println()

			cfg.SFTP.Password = string(pwd)
		}

		return manager.NewSFTP(cfg.SFTP, cfg.RemoteFile)

	default:
		log.Fatalf("unknown provider '%s'\n", provider)
		return nil
	}
}
