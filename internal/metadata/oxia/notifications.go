package oxia

import (
	"context"

	oxiaclient "github.com/oxia-db/oxia/oxia"

	"github.com/dray-io/ybroute/internal/metadata"
)

// notificationStream adapts oxiaclient.Notifications to metadata.NotificationStream.
type notificationStream struct {
	notifications oxiaclient.Notifications
	ctx           context.Context
}

// Next returns when a notification arrives or either context ends.
func (s *notificationStream) Next(ctx context.Context) (metadata.Notification, error) {
	select {
	case <-ctx.Done():
		return metadata.Notification{}, ctx.Err()
	case <-s.ctx.Done():
		return metadata.Notification{}, s.ctx.Err()
	case n, ok := <-s.notifications.Ch():
		if !ok {
			return metadata.Notification{}, metadata.ErrStreamClosed
		}
		return convertNotification(n), nil
	}
}

func (s *notificationStream) Close() error {
	return s.notifications.Close()
}

func convertNotification(n *oxiaclient.Notification) metadata.Notification {
	switch n.Type {
	case oxiaclient.KeyDeleted, oxiaclient.KeyRangeRangeDeleted:
		return metadata.Notification{Key: n.Key, Deleted: true}
	default:
		return metadata.Notification{Key: n.Key, Version: toMetadataVersion(n.VersionId)}
	}
}
