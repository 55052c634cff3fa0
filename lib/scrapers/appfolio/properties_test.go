package appfolio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchProperties(t *testing.T) {
	page := tableJson(t, "",
		tableRow{Data: []tableCell{
			{Value: `<a href="/properties/1584">Elm House<br />12 Elm St<br />Springfield, IL 62704</a>`},
			{Value: `Residential`},
			{Value: `8`},
			{Value: `Yes`},
			{Value: `<span>Holdings LLC</span>`},
		}},
		tableRow{Data: []tableCell{
			{Value: `<a href="/properties/1585">34 Oak Ave<br />34 Oak Ave<br />Springfield, IL 62704</a>`},
			{Value: `Commercial`},
			{Value: `1`},
			{Value: `No`},
			{Value: `Jordan Lim`},
		}},
		// too few columns, dropped
		tableRow{Data: []tableCell{{Value: `partial`}}},
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/properties", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("include_hidden_properties"))
		w.Write([]byte(page))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	properties, err := client.FetchProperties(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, properties, 2)

	require.Equal(t, Property{
		Name:          "Elm House",
		StreetAddress: "12 Elm St",
		CityStateZip:  "Springfield, IL 62704",
		Url:           "/properties/1584",
		Type:          "Residential",
		Units:         "8",
		Vacant:        true,
		Owner:         "Holdings LLC",
	}, properties[0])

	// a repeated first line means the property has no display name
	require.Equal(t, "", properties[1].Name)
	require.Equal(t, "34 Oak Ave", properties[1].StreetAddress)
	require.False(t, properties[1].Vacant)
}

func TestParsePropertyNameCell(t *testing.T) {
	for _, tt := range []struct {
		name     string
		cellHtml string
		want     Property
	}{
		{
			name:     "two lines with name",
			cellHtml: `<a href="/properties/1">Pine Lofts<br />9 Pine Rd</a>`,
			want:     Property{Name: "Pine Lofts", StreetAddress: "9 Pine Rd", Url: "/properties/1"},
		},
		{
			name:     "two repeated lines",
			cellHtml: `<a href="/properties/2">9 Pine Rd<br />9 Pine Rd</a>`,
			want:     Property{StreetAddress: "9 Pine Rd", Url: "/properties/2"},
		},
		{
			name:     "address only",
			cellHtml: `<a href="/properties/3">9 Pine Rd</a>`,
			want:     Property{StreetAddress: "9 Pine Rd", Url: "/properties/3"},
		},
		{
			name:     "no link",
			cellHtml: `plain text`,
			want:     Property{},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parsePropertyNameCell(tt.cellHtml))
		})
	}
}

func TestFetchUnits(t *testing.T) {
	units := tableJson(t,
		`<tr><th>Unit</th><th>Sq Ft</th><th>Tenant</th><th>Lease Start/End</th></tr>`,
		tableRow{
			Data: []tableCell{
				{Value: `<a href="/properties/1584/units/5027">12B</a>`},
				{Value: `850`},
				{Value: `<a href="/occupancies/482">Pat Doe</a>`},
				{Value: `07/01/2025 - 06/30/2026`},
			},
			RowDataAttributes: []tableAttr{{Key: "href", Value: "/properties/1584/units/5027"}},
		},
		tableRow{
			Data: []tableCell{
				{Value: `3A`},
				{Value: `600`},
				{Value: ``},
				{Value: `N/A`},
			},
		},
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/properties/1584/units":
			require.Equal(t, "1000", r.URL.Query().Get("items_per_page"))
			w.Write([]byte(units))
		case "/properties/9999/units":
			w.Write([]byte(`Property not found.`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")

	rows, err := client.FetchUnits(context.Background(), "/properties/1584")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "12B", rows[0]["Unit Name"])
	require.NotContains(t, rows[0], "Unit")
	require.Equal(t, "/properties/1584/units/5027", rows[0]["Unit URL"])
	require.Equal(t, "5027", rows[0]["Unit ID"])
	require.Equal(t, "482", rows[0]["Occupant ID"])
	require.Equal(t, "07/01/2025", rows[0]["Lease Start"])
	require.Equal(t, "06/30/2026", rows[0]["Lease End"])
	require.NotContains(t, rows[0], "Lease Start/End")

	require.Equal(t, "3A", rows[1]["Unit Name"])
	require.Equal(t, "", rows[1]["Unit URL"])
	require.Equal(t, "", rows[1]["Occupant ID"])
	require.Equal(t, "", rows[1]["Lease Start"])
	require.Equal(t, "", rows[1]["Lease End"])

	_, err = client.FetchUnits(context.Background(), "/properties/9999")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}
