package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/desertthunder/tracksearch/internal/shared"
)

const getTracksWithFeaturesMethod = "/spotify.SpotifySearch/GetTracksWithFeatures"

// TracksRequest asks for the embeddings of a list of track ids.
type TracksRequest struct {
	TrackIDs []string `json:"track_ids"`
}

// TrackEmbedding is one track of a [TracksResponse].
type TrackEmbedding struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata"`
}

// TracksResponse lists the requested tracks that have an embedding.
type TracksResponse struct {
	Tracks []TrackEmbedding `json:"tracks"`
}

// SpotifySearchServer is the server API of spotify.SpotifySearch.
type SpotifySearchServer interface {
	GetTracksWithFeatures(ctx context.Context, req *TracksRequest) (*TracksResponse, error)
}

// SpotifySearchServiceDesc describes spotify.SpotifySearch for [grpc.Server.RegisterService].
var SpotifySearchServiceDesc = grpc.ServiceDesc{
	ServiceName: "spotify.SpotifySearch",
	HandlerType: (*SpotifySearchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetTracksWithFeatures", Handler: getTracksWithFeaturesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "spotify.proto",
}

// RegisterSpotifySearch attaches srv to s.
func RegisterSpotifySearch(s grpc.ServiceRegistrar, srv SpotifySearchServer) {
	s.RegisterService(&SpotifySearchServiceDesc, srv)
}

func getTracksWithFeaturesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TracksRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpotifySearchServer).GetTracksWithFeatures(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getTracksWithFeaturesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SpotifySearchServer).GetTracksWithFeatures(ctx, req.(*TracksRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SpotifySearchClient calls spotify.SpotifySearch over conn. Calls use protobuf unless
// grpc.CallContentSubtype(JSONCodecName) is passed.
type SpotifySearchClient struct {
	conn grpc.ClientConnInterface
}

func NewSpotifySearchClient(conn grpc.ClientConnInterface) *SpotifySearchClient {
	return &SpotifySearchClient{conn: conn}
}

func (c *SpotifySearchClient) GetTracksWithFeatures(ctx context.Context, req *TracksRequest, opts ...grpc.CallOption) (*TracksResponse, error) {
	out := new(TracksResponse)
	if err := c.conn.Invoke(ctx, getTracksWithFeaturesMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchService implements [SpotifySearchServer] over a [Catalog].
type SearchService struct {
	catalog Catalog
	logger  *log.Logger
}

func NewSearchService(catalog Catalog, logger *log.Logger) *SearchService {
	return &SearchService{catalog: catalog, logger: logger}
}

// GetTracksWithFeatures returns only the tracks that have an embedding, in request order.
func (s *SearchService) GetTracksWithFeatures(ctx context.Context, req *TracksRequest) (*TracksResponse, error) {
	resp := &TracksResponse{Tracks: []TrackEmbedding{}}
	if req == nil || !hasIDs(req.TrackIDs) {
		return resp, nil
	}

	tracks, err := s.catalog.TracksWithFeatures(ctx, req.TrackIDs)
	if err != nil {
		return nil, grpcError(err)
	}
	for _, t := range tracks {
		if t.Embedding == nil {
			continue
		}
		resp.Tracks = append(resp.Tracks, TrackEmbedding{
			ID:        t.Track.ID,
			Embedding: t.Embedding.Slice(),
			Metadata:  t.Metadata(),
		})
	}
	return resp, nil
}

func hasIDs(ids []string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			return true
		}
	}
	return false
}

// grpcError maps a catalog error onto a status code.
func grpcError(err error) error {
	var code codes.Code
	switch shared.KindOf(err) {
	case shared.KindInvalidInput:
		code = codes.InvalidArgument
	case shared.KindAuthFailure:
		code = codes.Unauthenticated
	case shared.KindRateLimited:
		code = codes.ResourceExhausted
	case shared.KindUpstreamTimeout:
		code = codes.DeadlineExceeded
	case shared.KindUpstreamProtocol, shared.KindUpstream:
		code = codes.Unavailable
	default:
		switch {
		case errors.Is(err, context.Canceled):
			code = codes.Canceled
		case errors.Is(err, context.DeadlineExceeded):
			code = codes.DeadlineExceeded
		default:
			return status.Error(codes.Internal, "internal error")
		}
	}
	return status.Error(code, err.Error())
}

func unaryLogger(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := log.InfoLevel
		if code != codes.OK && code != codes.InvalidArgument {
			level = log.WarnLevel
		}
		logger.Log(level, "rpc", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
		return resp, err
	}
}
