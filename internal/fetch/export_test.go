package fetch

// Test exports for internal functions and pools.

// Classify exports classify for testing.
var Classify = classify

// UserAgentPool exports the user agent pool for testing.
var UserAgentPool = userAgents

// ViewportPool exports the viewport pool for testing.
var ViewportPool = viewports

// TimezonePool exports the timezone pool for testing.
var TimezonePool = timezones

// LanguagePool exports the language set pool for testing.
var LanguagePool = languageSets

// CamouflageScript exports camouflageScript for testing.
var CamouflageScript = camouflageScript
