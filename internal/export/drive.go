package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/queue"
	"bobbin/internal/services"
)

const (
	folderMimeType   = "application/vnd.google-apps.folder"
	markdownMimeType = "text/markdown"
	driveExportName  = "drive"
)

// DriveFiles is the subset of the Drive API the exporter uses.
type DriveFiles interface {
	FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, name, parentID, mimeType string, content []byte) (string, error)
}

// Drive uploads the markdown document into a folder tree mirroring the
// collection path under the configured root folder.
type Drive struct {
	files  DriveFiles
	rootID string
	logger *slog.Logger
}

// NewDrive authenticates with the stored OAuth token and builds the exporter.
// The token must already exist; there is no interactive consent flow.
func NewDrive(ctx context.Context, cfg config.Drive, logger *slog.Logger) (*Drive, error) {
	credentials, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "drive credentials", cfg.CredentialsFile, err)
	}
	oauthCfg, err := google.ConfigFromJSON(credentials, drive.DriveFileScope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "drive credentials", "parse "+cfg.CredentialsFile, err)
	}
	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "drive token",
			fmt.Sprintf("read %s; authorize once and save the token there", cfg.TokenFile), err)
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "drive client", "", err)
	}
	return NewDriveWithFiles(&driveAPI{svc: svc}, cfg.FolderID, logger), nil
}

// NewDriveWithFiles allows injecting the Drive API (used in tests).
func NewDriveWithFiles(files DriveFiles, rootID string, logger *slog.Logger) *Drive {
	if strings.TrimSpace(rootID) == "" {
		rootID = "root"
	}
	return &Drive{files: files, rootID: rootID, logger: logging.NewComponentLogger(logger, "export")}
}

// Name identifies the exporter.
func (d *Drive) Name() string { return driveExportName }

// Export uploads the markdown rendering and records the file's web link.
func (d *Drive) Export(ctx context.Context, item *queue.Item, opts Options) (string, error) {
	data, err := RenderMarkdown(BuildDocument(item, opts.Source, opts.Now))
	if err != nil {
		return "", services.Wrap(services.ErrExport, "export", "render markdown", item.Label(), err)
	}
	parent := d.rootID
	for _, segment := range strings.Split(item.CollectionPath, "/") {
		if segment = strings.TrimSpace(segment); segment == "" {
			continue
		}
		parent, err = d.files.FindOrCreateFolder(ctx, segment, parent)
		if err != nil {
			return "", services.Wrap(services.ErrExport, "export", "drive folder",
				fmt.Sprintf("%s for %s", segment, item.Label()), err)
		}
	}
	id, err := d.files.Upload(ctx, opts.Source.Slug()+".md", parent, markdownMimeType, data)
	if err != nil {
		return "", services.Wrap(services.ErrExport, "export", "drive upload", item.Label(), err)
	}
	link := fmt.Sprintf("https://drive.google.com/file/d/%s/view", id)
	item.SetExport(driveExportName, link)
	logging.WithContext(ctx, d.logger).Info("uploaded transcript to drive", logging.String("file_id", id))
	return link, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

type driveAPI struct {
	svc *drive.Service
}

func (a *driveAPI) FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed=false",
		escapeQuery(name), escapeQuery(parentID), folderMimeType)
	list, err := a.svc.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}
	folder := &drive.File{Name: name, MimeType: folderMimeType, Parents: []string{parentID}}
	created, err := a.svc.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func (a *driveAPI) Upload(ctx context.Context, name, parentID, mimeType string, content []byte) (string, error) {
	file := &drive.File{Name: name, MimeType: mimeType, Parents: []string{parentID}}
	created, err := a.svc.Files.Create(file).Media(bytes.NewReader(content)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func escapeQuery(value string) string {
	return strings.ReplaceAll(strings.ReplaceAll(value, `\`, `\\`), `'`, `\'`)
}
