package reconciler

import (
	"context"
	"fmt"
	"strings"

	"berth/internal/downloads"
	"berth/internal/events"
	"berth/internal/logging"
	"berth/internal/queue"
)

// GrabRequest describes a release handed to a back-end for download.
type GrabRequest struct {
	ClientID     string
	Source       downloads.Source
	Title        string
	Media        queue.MediaRef
	Quality      string
	ReleaseGroup string
	Automatic    bool
	IsUpgrade    bool
}

// Grab submits a release to its back-end and tracks it in the queue. The
// next poll is scheduled immediately so fast back-ends show progress without
// waiting out the interval.
func (r *Reconciler) Grab(ctx context.Context, request GrabRequest) (*queue.Item, error) {
	client, err := r.clients.Get(request.ClientID)
	if err != nil {
		return nil, err
	}
	clientCfg := client.Config()

	if clientCfg.Category != "" {
		if err := client.EnsureCategory(ctx, clientCfg.Category, ""); err != nil {
			r.logger.Warn("ensure category",
				logging.String(logging.FieldClientID, request.ClientID),
				logging.Error(err))
		}
	}

	nativeID, err := client.AddDownload(ctx, request.Source, downloads.AddOptions{
		Category: clientCfg.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("add download to %s: %w", request.ClientID, err)
	}

	item := &queue.Item{
		ClientID:      request.ClientID,
		DownloadID:    nativeID,
		Title:         request.Title,
		Protocol:      client.Protocol(),
		Media:         request.Media,
		Quality:       request.Quality,
		ReleaseGroup:  request.ReleaseGroup,
		AutomaticGrab: request.Automatic,
		IsUpgrade:     request.IsUpgrade,
		Status:        queue.StatusQueued,
	}
	if request.Source.Kind == downloads.SourceMagnet {
		item.MagnetURI = request.Source.Magnet
		if hash, ok := downloads.ParseMagnetHash(request.Source.Magnet); ok {
			item.ContentHash = hash
		}
	}
	// Some back-ends hand the info hash straight back as the native id.
	if item.ContentHash == "" && infoHashPattern.MatchString(nativeID) {
		item.ContentHash = strings.ToLower(nativeID)
	}

	stored, err := r.store.Enqueue(ctx, item)
	if err != nil {
		return nil, err
	}
	if err := r.store.RecordGrab(ctx, stored); err != nil {
		r.logger.Error("record grab", logging.Error(err))
	}

	r.logger.Info("release grabbed",
		logging.Int64(logging.FieldItemID, stored.ID),
		logging.String(logging.FieldClientID, stored.ClientID),
		logging.String(logging.FieldDownloadID, stored.DownloadID),
		logging.String("title", stored.Title))
	r.publish(ctx, events.TypeAdded, stored, "", "")
	r.ForcePoll()
	return stored, nil
}
