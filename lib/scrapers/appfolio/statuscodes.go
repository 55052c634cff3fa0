package appfolio

// defaultStatusCodes maps human-readable work-order statuses to the codes
// the filter endpoint expects. Deployments occasionally diverge, hence the
// ClientOptions override.
var defaultStatusCodes = map[string]string{
	"Open":                      "Open",
	"New":                       "0",
	"New by Appfolio":           "10",
	"Assigned":                  "9",
	"Assigned by Appfolio":      "11",
	"Scheduled":                 "3",
	"Waiting":                   "6",
	"Estimate Requested":        "1",
	"Estimated":                 "2",
	"Work Done":                 "8",
	"Ready to Bill":             "12",
	"Completed":                 "4",
	"Completed No Need To Bill": "7",
	"Canceled":                  "5",
}

func (c *Client) statusCode(status string) string {
	return c.statusCodes[status]
}
