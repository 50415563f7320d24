// package formatter exports a session snapshot to CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
)

// Format names accepted by [Export].
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
	FormatJSON     = "json"
)

// Formats lists every supported format.
var Formats = []string{FormatCSV, FormatMarkdown, FormatText, FormatJSON}

var extensions = map[string]string{
	FormatCSV:      ".csv",
	FormatMarkdown: ".md",
	FormatText:     ".txt",
	FormatJSON:     ".json",
}

// ExportToCSV writes the playlist with columns: Position, ID, Title, Artist, Duration, AddedBy
func ExportToCSV(session models.Session) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Artist", "Duration", "AddedBy"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range session.Playlist {
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.Title,
			track.Artist,
			strconv.Itoa(track.Duration),
			addedBy(session, track),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the roster, playlist and recommendations.
func ExportToMarkdown(session models.Session) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Session %s\n\n", session.ID)
	fmt.Fprintf(&buf, "**Participants**: %d\n", len(session.Participants))
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(session.Playlist))
	fmt.Fprintf(&buf, "**Total Length**: %s\n\n", shared.FormatDuration(totalDuration(session.Playlist)))

	if len(session.Participants) > 0 {
		buf.WriteString("## Participants\n\n")
		for _, p := range session.Participants {
			fmt.Fprintf(&buf, "- %s\n", p.Name)
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Playlist\n\n")
	for i, track := range session.Playlist {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]", i+1, track.Artist, track.Title, shared.FormatDuration(track.Duration))
		if by := addedBy(session, track); by != "" {
			fmt.Fprintf(&buf, " _added by %s_", by)
		}
		buf.WriteString("\n")
	}

	if len(session.Recommendations) > 0 {
		buf.WriteString("\n## Recommendations\n\n")
		for _, track := range session.Recommendations {
			fmt.Fprintf(&buf, "- %s - %s\n", track.Artist, track.Title)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts the playlist to plain text
func ExportToText(session models.Session) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Session: %s\n", session.ID)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(session.Playlist))

	for i, track := range session.Playlist {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Title)
	}

	return buf.Bytes(), nil
}

// ExportToJSON encodes the whole snapshot.
func ExportToJSON(session models.Session) ([]byte, error) {
	return shared.MarshalJSON(session, true)
}

// Export renders session in format.
func Export(format string, session models.Session) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ExportToCSV(session)
	case FormatMarkdown, "md":
		return ExportToMarkdown(session)
	case FormatText, "text":
		return ExportToText(session)
	case FormatJSON:
		return ExportToJSON(session)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q (use one of %s)", shared.ErrInvalidInput, format, strings.Join(Formats, ", "))
	}
}

// WriteExport writes session to path in format.
//
// Defaults to jam_{session.ID} plus the format's extension as the filename.
func WriteExport(session models.Session, format, path string) (string, error) {
	data, err := Export(format, session)
	if err != nil {
		return "", err
	}

	if path == "" {
		ext, ok := extensions[strings.ToLower(format)]
		if !ok {
			ext = "." + strings.ToLower(format)
		}
		path = "jam_" + session.ID + ext
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// addedBy resolves the display name of who queued track. Departed participants fall back to their id.
func addedBy(session models.Session, track models.Track) string {
	if track.AddedBy == "" {
		return ""
	}
	if p, ok := session.Participant(track.AddedBy); ok && p.Name != "" {
		return p.Name
	}
	return track.AddedBy
}

func totalDuration(tracks []models.Track) int {
	total := 0
	for _, t := range tracks {
		total += t.Duration
	}
	return total
}
