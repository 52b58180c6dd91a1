// Package connect provides the admin Connect RPC service.
package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/domain/voice"
)

// AdminServiceName is the fully-qualified name of the admin service.
const AdminServiceName = "voice.admin.v1.AdminService"

// Procedure paths of the admin service.
const (
	ListSessionsProcedure = "/" + AdminServiceName + "/ListSessions"
	GetQueueProcedure     = "/" + AdminServiceName + "/GetQueue"
	SkipProcedure         = "/" + AdminServiceName + "/Skip"
	PauseProcedure        = "/" + AdminServiceName + "/Pause"
	ResumeProcedure       = "/" + AdminServiceName + "/Resume"
	StopProcedure         = "/" + AdminServiceName + "/Stop"
	SetAutoplayProcedure  = "/" + AdminServiceName + "/SetAutoplay"
	SetVolumeProcedure    = "/" + AdminServiceName + "/SetVolume"
	WatchEventsProcedure  = "/" + AdminServiceName + "/WatchEvents"
)

const (
	defaultQueueLimit = 10
	eventBuffer       = 64
)

// SessionManager is the session surface exposed to operators.
type SessionManager interface {
	Statuses(ctx context.Context, n int) []session.Status
	Queue(ctx context.Context, guildID string, n int) (session.Status, error)
	Channel(guildID string) (voice.ChannelRef, error)
	Skip(ctx context.Context, ref voice.ChannelRef) (session.SkipResult, error)
	Pause(ctx context.Context, ref voice.ChannelRef) error
	Resume(ctx context.Context, ref voice.ChannelRef) error
	Stop(ctx context.Context, ref voice.ChannelRef) error
	SetAutoplay(ctx context.Context, ref voice.ChannelRef, enabled bool) error
	SetVolume(ctx context.Context, ref voice.ChannelRef, percent int) (int, error)
}

// Notifications is the subscription side of the notification manager.
type Notifications interface {
	SubscribeGuild(guildID string, stream notification.Stream) string
	Unsubscribe(subscriptionID string)
}

// AdminService implements the admin RPCs. Operators act on a guild's
// session without having to be in its voice channel.
type AdminService struct {
	sessions      SessionManager
	notifications Notifications
}

// NewAdminService creates a new AdminService.
func NewAdminService(sessions SessionManager, notifications Notifications) *AdminService {
	return &AdminService{
		sessions:      sessions,
		notifications: notifications,
	}
}

// NewAdminServiceHandler builds an HTTP handler serving every admin
// procedure. It returns the path prefix to mount it on.
func NewAdminServiceHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ListSessionsProcedure, connect.NewUnaryHandler(ListSessionsProcedure, svc.ListSessions, opts...))
	mux.Handle(GetQueueProcedure, connect.NewUnaryHandler(GetQueueProcedure, svc.GetQueue, opts...))
	mux.Handle(SkipProcedure, connect.NewUnaryHandler(SkipProcedure, svc.Skip, opts...))
	mux.Handle(PauseProcedure, connect.NewUnaryHandler(PauseProcedure, svc.Pause, opts...))
	mux.Handle(ResumeProcedure, connect.NewUnaryHandler(ResumeProcedure, svc.Resume, opts...))
	mux.Handle(StopProcedure, connect.NewUnaryHandler(StopProcedure, svc.Stop, opts...))
	mux.Handle(SetAutoplayProcedure, connect.NewUnaryHandler(SetAutoplayProcedure, svc.SetAutoplay, opts...))
	mux.Handle(SetVolumeProcedure, connect.NewUnaryHandler(SetVolumeProcedure, svc.SetVolume, opts...))
	mux.Handle(WatchEventsProcedure, connect.NewServerStreamHandler(WatchEventsProcedure, svc.WatchEvents, opts...))
	return "/" + AdminServiceName + "/", mux
}

// ListSessions returns every live session.
func (s *AdminService) ListSessions(
	ctx context.Context,
	req *connect.Request[ListSessionsRequest],
) (*connect.Response[ListSessionsResponse], error) {
	limit := req.Msg.Limit
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	statuses := s.sessions.Statuses(ctx, limit)
	resp := &ListSessionsResponse{Sessions: make([]SessionStatus, 0, len(statuses))}
	for _, st := range statuses {
		resp.Sessions = append(resp.Sessions, toSessionStatus(st))
	}
	return connect.NewResponse(resp), nil
}

// GetQueue returns the status of one guild's session.
func (s *AdminService) GetQueue(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[GetQueueResponse], error) {
	limit := req.Msg.Limit
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	st, err := s.sessions.Queue(ctx, req.Msg.GuildID, limit)
	if err != nil {
		return nil, rpcError(err)
	}
	return connect.NewResponse(&GetQueueResponse{Status: toSessionStatus(st)}), nil
}

// Skip skips the current track of a guild's session.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[SkipResponse], error) {
	ref, err := s.sessions.Channel(req.Msg.GuildID)
	if err != nil {
		return connect.NewResponse(&SkipResponse{CommandResponse: failed(err)}), nil
	}
	res, err := s.sessions.Skip(ctx, ref)
	if err != nil {
		return connect.NewResponse(&SkipResponse{CommandResponse: failed(err)}), nil
	}
	zlog.Info().Msgf("admin skip: guild=%s track=%s", ref.GuildID, res.Skipped.URI)

	skipped := toTrackInfo(res.Skipped)
	return connect.NewResponse(&SkipResponse{
		CommandResponse: succeeded("Track skipped"),
		Skipped:         &skipped,
		Next:            toTrackInfoPtr(res.Next),
		Autoplay:        res.Autoplay,
		AutoplayFailed:  res.AutoplayFailed,
	}), nil
}

// Pause pauses a guild's session.
func (s *AdminService) Pause(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, req.Msg.GuildID, "Session paused", s.sessions.Pause)
}

// Resume resumes a guild's session.
func (s *AdminService) Resume(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, req.Msg.GuildID, "Session resumed", s.sessions.Resume)
}

// Stop destroys a guild's session.
func (s *AdminService) Stop(
	ctx context.Context,
	req *connect.Request[GuildRequest],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, req.Msg.GuildID, "Session stopped", s.sessions.Stop)
}

// SetAutoplay toggles autoplay for a guild's session.
func (s *AdminService) SetAutoplay(
	ctx context.Context,
	req *connect.Request[SetAutoplayRequest],
) (*connect.Response[CommandResponse], error) {
	msg := "Autoplay disabled"
	if req.Msg.Enabled {
		msg = "Autoplay enabled"
	}
	return s.command(ctx, req.Msg.GuildID, msg, func(ctx context.Context, ref voice.ChannelRef) error {
		return s.sessions.SetAutoplay(ctx, ref, req.Msg.Enabled)
	})
}

// SetVolume sets the volume of a guild's session.
func (s *AdminService) SetVolume(
	ctx context.Context,
	req *connect.Request[SetVolumeRequest],
) (*connect.Response[SetVolumeResponse], error) {
	ref, err := s.sessions.Channel(req.Msg.GuildID)
	if err != nil {
		return connect.NewResponse(&SetVolumeResponse{CommandResponse: failed(err)}), nil
	}
	applied, err := s.sessions.SetVolume(ctx, ref, req.Msg.Volume)
	if err != nil {
		return connect.NewResponse(&SetVolumeResponse{CommandResponse: failed(err)}), nil
	}
	return connect.NewResponse(&SetVolumeResponse{
		CommandResponse: succeeded("Volume set"),
		Volume:          applied,
	}), nil
}

// WatchEvents streams session notifications until the client goes away.
// Events are dropped for a client that falls behind.
func (s *AdminService) WatchEvents(
	ctx context.Context,
	req *connect.Request[WatchEventsRequest],
	stream *connect.ServerStream[Event],
) error {
	events := make(chan *Event, eventBuffer)
	id := s.notifications.SubscribeGuild(req.Msg.GuildID, notification.StreamFunc(func(n *notification.Notification) error {
		select {
		case events <- toEvent(n):
		default:
			zlog.Debug().Msgf("admin event dropped: type=%s guild=%s", n.Type, n.GuildID)
		}
		return nil
	}))
	defer s.notifications.Unsubscribe(id)

	zlog.Info().Msgf("admin watching events: guild=%q", req.Msg.GuildID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if err := stream.Send(ev); err != nil {
				return err
			}
		}
	}
}

func (s *AdminService) command(
	ctx context.Context,
	guildID, okMessage string,
	fn func(context.Context, voice.ChannelRef) error,
) (*connect.Response[CommandResponse], error) {
	ref, err := s.sessions.Channel(guildID)
	if err != nil {
		return connect.NewResponse(ptr(failed(err))), nil
	}
	if err := fn(ctx, ref); err != nil {
		return connect.NewResponse(ptr(failed(err))), nil
	}
	return connect.NewResponse(ptr(succeeded(okMessage))), nil
}

func succeeded(msg string) CommandResponse {
	return CommandResponse{Success: true, Code: string(session.CodeOK), Message: msg}
}

func failed(err error) CommandResponse {
	return CommandResponse{Success: false, Code: string(session.CodeOf(err)), Message: err.Error()}
}

func ptr[T any](v T) *T {
	return &v
}

// rpcError maps session errors to Connect codes for query RPCs.
func rpcError(err error) error {
	switch session.CodeOf(err) {
	case session.CodeNotInSession:
		return connect.NewError(connect.CodeNotFound, err)
	case session.CodeTransient:
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
