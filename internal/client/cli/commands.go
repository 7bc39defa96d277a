package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/client/chat"
	"github.com/dmitrijs2005/birdwatch/internal/client/client"
	"github.com/dmitrijs2005/birdwatch/internal/client/services"
	"github.com/dmitrijs2005/birdwatch/internal/client/store"
	"github.com/dmitrijs2005/birdwatch/internal/client/syncer"
)

var errUsage = errors.New("usage")

const timeLayout = "2006-01-02 15:04"

func (a *App) SetUsername(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Current username:", a.identity.Username(ctx))
		return nil
	}
	if err := a.identity.SetUsername(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	printlnFn("Username set to", a.identity.Username(ctx))
	return nil
}

func (a *App) AddSighting(ctx context.Context) error {
	var d services.Draft
	prompts := []struct {
		text     string
		dst      *string
		optional bool
	}{
		{"Species (identification)", &d.Identification, true},
		{"Description", &d.Description, true},
		{"Latitude", &d.Latitude, false},
		{"Longitude", &d.Longitude, false},
		{"Photo path", &d.ImagePath, true},
	}
	for _, p := range prompts {
		var (
			v   string
			err error
		)
		if p.optional {
			v, err = GetOptionalText(a.reader, p.text, os.Stdout)
		} else {
			v, err = GetSimpleText(a.reader, p.text, os.Stdout)
		}
		if err != nil {
			return err
		}
		*p.dst = v
	}

	sub, err := a.sightings.Submit(ctx, d)
	if err != nil {
		return err
	}
	if sub.Queued {
		printlnFn("Saved offline; it will be uploaded when the connection returns.")
		if d.ImagePath != "" {
			printlnFn("The photo is not kept offline; add it later with 'photo'.")
		}
		return nil
	}
	printlnFn("Sighting added:", sub.Sighting.ID)
	return nil
}

func (a *App) List(ctx context.Context) error {
	pending := a.sightings.Pending(ctx)
	if len(pending) > 0 {
		printlnFn(fmt.Sprintf("Queued (%d):", len(pending)))
		for _, p := range pending {
			printlnFn(fmt.Sprintf("  [queued] %s  %s  by %s  at %s,%s",
				p.DateTime.Local().Format(timeLayout), orUnknown(p.Identification), p.UploadedBy, p.Latitude, p.Longitude))
		}
	}

	if !a.monitor.Online() {
		printlnFn("Offline: only queued sightings are shown.")
		return nil
	}

	list, err := a.sightings.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 && len(pending) == 0 {
		printlnFn("No sightings yet.")
		return nil
	}
	for _, s := range list {
		printlnFn(fmt.Sprintf("  %s  %s  %s  by %s",
			s.ID, s.DateTime.Local().Format(timeLayout), orUnknown(s.Identification), s.UploadedBy))
	}
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: show <id>", errUsage)
	}
	d, err := a.sightings.Get(ctx, args[0])
	if err != nil {
		return err
	}

	printlnFn("Sighting", d.ID)
	printlnFn("  Identification:", orUnknown(d.Identification))
	printlnFn("  Description:   ", d.Description)
	printlnFn("  Seen:          ", d.DateTime.Local().Format(timeLayout), "by", d.UploadedBy)
	printlnFn("  Location:      ", fmt.Sprintf("%.5f, %.5f", d.Latitude, d.Longitude))
	printlnFn("  Photo:         ", d.Image)
	if d.Species != nil {
		printlnFn("  Species:       ", d.Species.Name, "("+d.Species.Genus+" "+d.Species.Species+")")
		printlnFn("  About:         ", d.Species.Abstract)
		printlnFn("  More:          ", d.Species.URL)
	}
	if d.MapImage != "" {
		printlnFn("  Map:           ", describeMap(d.MapImage))
	}
	return nil
}

func (a *App) Identify(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: identify <id> <species>", errUsage)
	}
	if err := a.sightings.UpdateIdentification(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		return explainEdit(err)
	}
	printlnFn("Identification updated.")
	return nil
}

func (a *App) Photo(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: photo <id> <path>", errUsage)
	}
	if err := a.sightings.UpdateImage(ctx, args[0], args[1]); err != nil {
		return explainEdit(err)
	}
	printlnFn("Photo updated.")
	return nil
}

func explainEdit(err error) error {
	if errors.Is(err, client.ErrForbidden) {
		return errors.New("only the device that recorded this sighting can edit it")
	}
	return err
}

func (a *App) Species(ctx context.Context) error {
	names, err := a.sightings.Species(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		printlnFn("  " + n)
	}
	return nil
}

func (a *App) Join(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: join <id>", errUsage)
	}
	if err := a.chat.Join(ctx, args[0], a.identity.Username(ctx)); err != nil {
		return err
	}
	printlnFn("Joined room", args[0]+". Type to chat, 'leave' to exit the room.")
	return nil
}

func (a *App) Say(ctx context.Context, text string) error {
	return a.chat.Send(ctx, text)
}

func (a *App) Leave(ctx context.Context) error {
	if a.chat.Room() == "" {
		return chat.ErrNoRoom
	}
	a.chat.Leave(ctx)
	printlnFn("Left the room.")
	return nil
}

func (a *App) InRoom() bool {
	return a.chat.Room() != ""
}

func (a *App) Sync(ctx context.Context) error {
	if !a.monitor.Online() {
		printlnFn("Offline: queued items will sync when the connection returns.")
		return nil
	}
	a.reportSync(a.syncer.SyncAll(ctx))
	return nil
}

func (a *App) Status(ctx context.Context) error {
	pendingChat := 0
	for _, m := range a.queue.ListChatMessages(ctx) {
		if !m.Synced {
			pendingChat++
		}
	}
	printlnFn("Mode:              ", a.monitor.Mode())
	printlnFn("Server:            ", a.config.ServerEndpointAddr)
	printlnFn("Username:          ", a.identity.Username(ctx))
	printlnFn("Local store:       ", a.store.Tier(ctx))
	printlnFn("Queued sightings:  ", len(a.queue.ListPendingSightings(ctx)))
	printlnFn("Queued messages:   ", pendingChat)
	if rep, ok := a.syncer.Last(); ok {
		printlnFn("Last sync:         ", summarize(rep))
	}
	if a.store.Tier(ctx) == store.TierFallback {
		printlnFn("Warning: the local database is unavailable; only the latest item per kind is kept.")
	}
	return nil
}

func (a *App) reportSync(rep syncer.Report) {
	if rep.Coalesced {
		printlnFn("A sync is already running; it will run once more when done.")
		return
	}
	if rep.ChatReplayed == 0 && rep.SightingsSent == 0 && rep.Err == nil {
		return
	}
	printlnFn("Sync:", summarize(rep))
	for _, item := range rep.Items {
		if item.Error != "" {
			printlnFn(fmt.Sprintf("  %s %s: %s", item.ClientRef, item.Status, item.Error))
		}
	}
}

func summarize(rep syncer.Report) string {
	s := fmt.Sprintf("%d message(s) replayed, %d sighting(s) uploaded", rep.ChatReplayed, rep.SightingsCommitted)
	if rep.ChatFailed > 0 {
		s += fmt.Sprintf(", %d message(s) still queued", rep.ChatFailed)
	}
	if rep.Err != nil {
		s += fmt.Sprintf(", %d sighting(s) still queued (%v)", rep.SightingsSent-rep.SightingsCommitted, rep.Err)
	}
	return s
}

func (a *App) renderLine(l chat.Line) {
	mark := ""
	if l.Pending {
		mark = " (queued)"
	}
	printlnFn(fmt.Sprintf("[%s] %s: %s%s", l.DateTime.Local().Format(time.Kitchen), l.User, l.Text, mark))
}

func orUnknown(s string) string {
	if s == "" {
		return "unidentified"
	}
	return s
}

// describeMap summarizes a data URI instead of dumping it on the terminal.
func describeMap(uri string) string {
	kind, data, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(kind, "data:") {
		return uri
	}
	kind = strings.TrimSuffix(strings.TrimPrefix(kind, "data:"), ";base64")
	return fmt.Sprintf("%s, %d bytes encoded", kind, len(data))
}
