// Spotify API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// maxSeeds is the number of seed tracks the recommendations endpoint accepts.
	maxSeeds = 5
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyService talks to the Spotify Web API over an [oauth2] client.
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"user-read-private", "user-read-email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{config: config, baseURL: spotifyBaseURL}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Config returns the OAuth2 configuration, shared with the auth provider for refreshes.
func (s *SpotifyService) Config() *oauth2.Config {
	return s.config
}

// SetBaseURL points the client at another API root.
func (s *SpotifyService) SetBaseURL(baseURL string) {
	s.baseURL = strings.TrimRight(baseURL, "/")
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authenticate builds the HTTP client from either an "access_token" or an "auth_code" in credentials. The exchanged
// token is returned so the caller can store it.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) (*oauth2.Token, error) {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
		s.httpClient = s.config.Client(ctx, token)
		return token, nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange auth code: %w", err)
		}
		s.httpClient = s.config.Client(ctx, token)
		return token, nil
	}

	return nil, fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// UseTokenSource authorises requests with src.
func (s *SpotifyService) UseTokenSource(ctx context.Context, src oauth2.TokenSource) {
	s.httpClient = oauth2.NewClient(ctx, src)
}

func (s *SpotifyService) get(ctx context.Context, endpoint string, result any) error {
	if s.httpClient == nil {
		return shared.ErrNotAuthenticated
	}
	return getJSON(ctx, s.httpClient, s.baseURL+endpoint, result)
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.get(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Participant resolves the local session participant from the user's profile.
func (s *SpotifyService) Participant(ctx context.Context) (models.Participant, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return models.Participant{}, err
	}

	p := models.Participant{ID: user.ID, Name: user.DisplayName}
	if p.Name == "" {
		p.Name = user.ID
	}
	if len(user.Images) > 0 {
		p.Avatar = user.Images[0].URL
	}
	return p, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*SpotifyTrack, error) {
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id is required", shared.ErrMissingArgument)
	}

	var track SpotifyTrack
	if err := s.get(ctx, "/tracks/"+url.PathEscape(trackID), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Recommendations returns up to limit tracks seeded with seedTrackIDs (at most five).
func (s *SpotifyService) Recommendations(ctx context.Context, seedTrackIDs []string, limit int) ([]SpotifyTrack, error) {
	if len(seedTrackIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one seed track is required", shared.ErrMissingArgument)
	}
	if len(seedTrackIDs) > maxSeeds {
		return nil, fmt.Errorf("%w: at most %d seed tracks allowed", shared.ErrInvalidArgument, maxSeeds)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	q := url.Values{}
	q.Set("seed_tracks", strings.Join(seedTrackIDs, ","))
	q.Set("limit", strconv.Itoa(limit))

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := s.get(ctx, "/recommendations?"+q.Encode(), &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// Recommend suggests tracks for a session, seeded with the most recent playlist entries. An empty playlist yields no
// suggestions.
func (s *SpotifyService) Recommend(ctx context.Context, session models.Session) ([]models.Track, error) {
	if len(session.Playlist) == 0 {
		return nil, nil
	}

	start := max(0, len(session.Playlist)-maxSeeds)
	seeds := make([]string, 0, maxSeeds)
	for _, t := range session.Playlist[start:] {
		seeds = append(seeds, t.ID)
	}

	found, err := s.Recommendations(ctx, seeds, 10)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(found))
	for _, st := range found {
		if session.HasTrack(st.ID) {
			continue
		}
		tracks = append(tracks, st.ToTrack())
	}
	return tracks, nil
}

// ToTrack converts to the session track shape.
func (t SpotifyTrack) ToTrack() models.Track {
	track := models.Track{
		ID:       t.ID,
		Title:    t.Name,
		Duration: t.DurationMS / 1000,
	}
	if len(t.Artists) > 0 {
		names := make([]string, len(t.Artists))
		for i, a := range t.Artists {
			names[i] = a.Name
		}
		track.Artist = strings.Join(names, ", ")
	}
	if len(t.Album.Images) > 0 {
		track.AlbumArt = t.Album.Images[0].URL
	}
	return track
}
