package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// AdminClient calls the admin service.
type AdminClient struct {
	listSessions *connect.Client[ListSessionsRequest, ListSessionsResponse]
	getQueue     *connect.Client[GuildRequest, GetQueueResponse]
	skip         *connect.Client[GuildRequest, SkipResponse]
	pause        *connect.Client[GuildRequest, CommandResponse]
	resume       *connect.Client[GuildRequest, CommandResponse]
	stop         *connect.Client[GuildRequest, CommandResponse]
	setAutoplay  *connect.Client[SetAutoplayRequest, CommandResponse]
	setVolume    *connect.Client[SetVolumeRequest, SetVolumeResponse]
	watchEvents  *connect.Client[WatchEventsRequest, Event]
}

// NewAdminClient creates a client for the admin service at baseURL.
func NewAdminClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &AdminClient{
		listSessions: connect.NewClient[ListSessionsRequest, ListSessionsResponse](httpClient, baseURL+ListSessionsProcedure, opts...),
		getQueue:     connect.NewClient[GuildRequest, GetQueueResponse](httpClient, baseURL+GetQueueProcedure, opts...),
		skip:         connect.NewClient[GuildRequest, SkipResponse](httpClient, baseURL+SkipProcedure, opts...),
		pause:        connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+PauseProcedure, opts...),
		resume:       connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+ResumeProcedure, opts...),
		stop:         connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+StopProcedure, opts...),
		setAutoplay:  connect.NewClient[SetAutoplayRequest, CommandResponse](httpClient, baseURL+SetAutoplayProcedure, opts...),
		setVolume:    connect.NewClient[SetVolumeRequest, SetVolumeResponse](httpClient, baseURL+SetVolumeProcedure, opts...),
		watchEvents:  connect.NewClient[WatchEventsRequest, Event](httpClient, baseURL+WatchEventsProcedure, opts...),
	}
}

func (c *AdminClient) ListSessions(ctx context.Context, limit int) (*ListSessionsResponse, error) {
	resp, err := c.listSessions.CallUnary(ctx, connect.NewRequest(&ListSessionsRequest{Limit: limit}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *AdminClient) GetQueue(ctx context.Context, guildID string, limit int) (*GetQueueResponse, error) {
	resp, err := c.getQueue.CallUnary(ctx, connect.NewRequest(&GuildRequest{GuildID: guildID, Limit: limit}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *AdminClient) Skip(ctx context.Context, guildID string) (*SkipResponse, error) {
	resp, err := c.skip.CallUnary(ctx, connect.NewRequest(&GuildRequest{GuildID: guildID}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *AdminClient) Pause(ctx context.Context, guildID string) (*CommandResponse, error) {
	return callCommand(ctx, c.pause, &GuildRequest{GuildID: guildID})
}

func (c *AdminClient) Resume(ctx context.Context, guildID string) (*CommandResponse, error) {
	return callCommand(ctx, c.resume, &GuildRequest{GuildID: guildID})
}

func (c *AdminClient) Stop(ctx context.Context, guildID string) (*CommandResponse, error) {
	return callCommand(ctx, c.stop, &GuildRequest{GuildID: guildID})
}

func (c *AdminClient) SetAutoplay(ctx context.Context, guildID string, enabled bool) (*CommandResponse, error) {
	return callCommand(ctx, c.setAutoplay, &SetAutoplayRequest{GuildID: guildID, Enabled: enabled})
}

func (c *AdminClient) SetVolume(ctx context.Context, guildID string, volume int) (*SetVolumeResponse, error) {
	resp, err := c.setVolume.CallUnary(ctx, connect.NewRequest(&SetVolumeRequest{GuildID: guildID, Volume: volume}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// WatchEvents opens an event stream. The caller must Close it.
func (c *AdminClient) WatchEvents(ctx context.Context, guildID string) (*connect.ServerStreamForClient[Event], error) {
	return c.watchEvents.CallServerStream(ctx, connect.NewRequest(&WatchEventsRequest{GuildID: guildID}))
}

func callCommand[Req any](ctx context.Context, client *connect.Client[Req, CommandResponse], req *Req) (*CommandResponse, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
