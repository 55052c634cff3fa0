package appfolio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractHtmlPayload(t *testing.T) {
	content, ok := extractHtmlPayload(`$("#x").html("<p>hi \"there\"<\/p>")`)
	require.True(t, ok)
	require.Equal(t, `<p>hi "there"</p>`, content)

	_, ok = extractHtmlPayload(`alert("no injection here")`)
	require.False(t, ok)
}

func TestParseNoteForm(t *testing.T) {
	escaped := `$("#new-note").html("<form><input name=\"authenticity_token\" type=\"hidden\" value=\"tok123\" /><input name=\"note[notable_id]\" value=\"777\" /><input name=\"note[notable_type]\" value=\"Maintenance::ServiceRequestDecorator\" /><\/form>")`
	form, err := parseNoteForm(escaped)
	require.NoError(t, err)
	require.Equal(t, "tok123", form.Token)
	require.Equal(t, "777", form.NotableId)
	require.Equal(t, "Maintenance::ServiceRequestDecorator", form.NotableType)

	plain := `<form><input name="authenticity_token" type="hidden" value="tok456" /></form>`
	form, err = parseNoteForm(plain)
	require.NoError(t, err)
	require.Equal(t, "tok456", form.Token)
	require.Equal(t, "", form.NotableId)

	_, err = parseNoteForm(`<form>nothing</form>`)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestNoteCreated(t *testing.T) {
	require.True(t, noteCreated(`<div>Call before entering</div>`, "Call before entering"))
	require.True(t, noteCreated("<div>Call   before\nentering</div>", "Call before entering"))
	require.True(t, noteCreated(`<span class="note"> Call before entering </span>`, "Call before entering"))
	require.False(t, noteCreated(`<div>some other note</div>`, "Call before entering"))
}

func TestFetchNotesEmptyFragment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`$("#stats").refresh()`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	notes, err := client.FetchNotes(context.Background(), "777")
	require.NoError(t, err)
	require.Nil(t, notes)
}

func TestCreateNote(t *testing.T) {
	var posted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/notes/new":
			require.Equal(t, "777", r.URL.Query().Get("add_notes_for_id"))
			w.Write([]byte(`$("#new-note").html("<form><input name=\"authenticity_token\" value=\"tok123\" /><\/form>")`))
		case r.URL.Path == "/notes" && r.Method == http.MethodPost:
			require.NoError(t, r.ParseForm())
			require.Equal(t, "tok123", r.PostForm.Get("authenticity_token"))
			require.Equal(t, "Call before entering", r.PostForm.Get("note[note]"))
			// the form carried no identifiers, so the caller's arguments fill in
			require.Equal(t, "777", r.PostForm.Get("note[notable_id]"))
			require.Equal(t, noteDecoratorType, r.PostForm.Get("note[notable_type]"))
			posted = true
			w.Write([]byte(`$("#notes").html("<span>Call before entering</span>")`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	err := client.CreateNote(context.Background(), "777", "Call before entering")
	require.NoError(t, err)
	require.True(t, posted)
}

func TestCreateNoteVerificationFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notes/new":
			w.Write([]byte(`$("#new-note").html("<form><input name=\"authenticity_token\" value=\"tok123\" /><\/form>")`))
		case "/notes":
			w.Write([]byte(`$("#notes").html("<span>something else entirely</span>")`))
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	err := client.CreateNote(context.Background(), "777", "Call before entering")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}
