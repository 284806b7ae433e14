package placeholder

// Token describes one placeholder for the public catalog.
type Token struct {
	Name        string `json:"name"`
	Example     string `json:"example"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

var catalog = []Token{
	{"uuid", "{{uuid}}", "identity", "Random UUID v4 (aliases: uuid4, guid)"},
	{"timestamp", "{{timestamp}}", "time", "Current Unix time in milliseconds"},
	{"timestamp_unix", "{{timestamp_unix}}", "time", "Current Unix time in seconds"},
	{"timestamp_iso", "{{timestamp_iso}}", "time", "Current UTC time, RFC 3339"},
	{"date", "{{date}}", "time", "Current UTC date, YYYY-MM-DD"},
	{"time", "{{time}}", "time", "Current UTC time, HH:MM:SS"},
	{"datetime", "{{datetime}}", "time", "Current UTC date and time, YYYY-MM-DD HH:MM:SS"},
	{"random", "{{random:1:100}}", "number", "Random integer; defaults to 0..1000, {{random:MAX}} gives 0..MAX"},
	{"random_int", "{{random_int:1:100}}", "number", "Random integer between MIN and MAX inclusive"},
	{"random_float", "{{random_float:0:10}}", "number", "Random decimal with two places, default 0..100"},
	{"random_string", "{{random_string:12}}", "string", "Random letters, default length 10"},
	{"random_hex", "{{random_hex:8}}", "string", "Random lowercase hex, default length 16"},
	{"random_alphanumeric", "{{random_alphanumeric:6}}", "string", "Random letters and digits, default length 10"},
	{"random_name", "{{random_name}}", "person", "Random full name"},
	{"random_first_name", "{{random_first_name}}", "person", "Random first name"},
	{"random_last_name", "{{random_last_name}}", "person", "Random last name"},
	{"random_email", "{{random_email}}", "person", "Random email address"},
	{"random_username", "{{random_username}}", "person", "Random lowercase username"},
	{"random_bool", "{{random_bool}}", "boolean", "true or false (alias: random_boolean)"},
	{"request.path", "{{request.path.id}}", "request", "Path parameter bound by the endpoint template"},
	{"request.query", "{{request.query.page}}", "request", "First value of a query parameter"},
	{"request.header", "{{request.header.X-Trace-Id}}", "request", "Request header value"},
	{"request.body", "{{request.body.user.email}}", "request", "Value at a dotted path in the JSON request body"},
	{"request.method", "{{request.method}}", "request", "HTTP method of the request"},
	{"response.status", "{{response.status}}", "response", "Status code of the mock response (callbacks only)"},
	{"response.body", "{{response.body.id}}", "response", "Value in the JSON mock response (callbacks only)"},
}

// Catalog lists the supported tokens.
func Catalog() []Token {
	out := make([]Token, len(catalog))
	copy(out, catalog)
	return out
}
