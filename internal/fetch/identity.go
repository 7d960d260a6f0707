package fetch

// Identity is one synthetic browser fingerprint. The HTTP mode draws a
// fresh identity per request; the browser mode keeps one per context and
// rotates it with the context.
type Identity struct {
	UserAgent           string
	ViewportWidth       int
	ViewportHeight      int
	Timezone            string
	Languages           []string
	HardwareConcurrency int
	DeviceMemory        int
}

// userAgents spans current desktop Chrome, Firefox, Safari, and Edge
// across Windows, macOS, and Linux.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:123.0) Gecko/20100101 Firefox/123.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
}

var viewports = [][2]int{
	{1920, 1080},
	{1366, 768},
	{1536, 864},
	{1440, 900},
	{1280, 720},
	{1600, 900},
	{1680, 1050},
	{1360, 768},
	{1920, 1200},
	{2560, 1440},
}

// US timezones only; the directory serves US listings and a Sydney
// timezone paired with an Austin search is its own tell.
var timezones = []string{
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Phoenix",
	"America/Los_Angeles",
	"America/Detroit",
	"America/Indiana/Indianapolis",
}

var languageSets = [][]string{
	{"en-US", "en"},
	{"en-US", "en", "es"},
	{"en-US"},
	{"en-US", "en", "fr"},
}

var hardwareConcurrencies = []int{2, 4, 6, 8, 12, 16}

var deviceMemories = []int{2, 4, 8, 16, 32}

// RandomIdentity draws each parameter independently from the fixed pools
// using the pacer's PRNG, so a seeded run reproduces its identities.
func RandomIdentity(p *Pacer) Identity {
	vp := viewports[p.Pick(len(viewports))]
	return Identity{
		UserAgent:           userAgents[p.Pick(len(userAgents))],
		ViewportWidth:       vp[0],
		ViewportHeight:      vp[1],
		Timezone:            timezones[p.Pick(len(timezones))],
		Languages:           languageSets[p.Pick(len(languageSets))],
		HardwareConcurrency: hardwareConcurrencies[p.Pick(len(hardwareConcurrencies))],
		DeviceMemory:        deviceMemories[p.Pick(len(deviceMemories))],
	}
}

// AcceptLanguage renders the language list as an Accept-Language header
// value with descending quality weights.
func (id Identity) AcceptLanguage() string {
	switch len(id.Languages) {
	case 0:
		return "en-US,en;q=0.9"
	case 1:
		return id.Languages[0]
	case 2:
		return id.Languages[0] + "," + id.Languages[1] + ";q=0.9"
	default:
		return id.Languages[0] + "," + id.Languages[1] + ";q=0.9," + id.Languages[2] + ";q=0.8"
	}
}
