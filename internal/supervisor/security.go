package supervisor

import "github.com/chromedp/chromedp"

// SecurityProfile selects the Chrome launch flag set the supervisor applies.
// Ported from the teacher's getStrictSecurityOptions / getBalancedSecurityOptions
// / getPermissiveSecurityOptions trio in internal/browser/browser.go, which the
// spec's BrowserInstance.SecurityProfile field now makes an explicit, named
// launch_with_profile argument instead of a hidden struct field.
type SecurityProfile string

const (
	SecurityStrict     SecurityProfile = "strict"
	SecurityBalanced   SecurityProfile = "balanced"
	SecurityPermissive SecurityProfile = "permissive"
)

// launchFlags returns the chromedp ExecAllocatorOption set for a profile,
// defaulting to balanced for anything unrecognized.
func launchFlags(profile SecurityProfile) []chromedp.ExecAllocatorOption {
	base := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.Flag("start-maximized", true),
	}

	switch profile {
	case SecurityStrict:
		return append(base, strictFlags()...)
	case SecurityPermissive:
		return append(base, permissiveFlags()...)
	default:
		return append(base, balancedFlags()...)
	}
}

func strictFlags() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("no-sandbox", false),
		chromedp.Flag("disable-setuid-sandbox", false),
		chromedp.Flag("site-per-process", true),
		chromedp.Flag("enable-features", "SitePerProcess,NetworkServiceSandbox,StrictOriginIsolation"),
		chromedp.Flag("disable-web-security", false),
		chromedp.Flag("disable-features", "TranslateUI,MediaRouter"),
		chromedp.Flag("enable-strict-mixed-content-checking", true),
		chromedp.Flag("block-new-web-contents", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("disable-3d-apis", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("gpu-sandbox-failures-fatal", true),
		chromedp.Flag("force-color-profile", "srgb"),
	}
}

func balancedFlags() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("no-sandbox", false),
		chromedp.Flag("disable-setuid-sandbox", false),
		chromedp.Flag("site-per-process", true),
		chromedp.Flag("enable-features", "SitePerProcess,NetworkServiceSandbox"),
		chromedp.Flag("disable-web-security", false),
		chromedp.Flag("block-new-web-contents", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("force-color-profile", "srgb"),
	}
}

func permissiveFlags() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("disable-extensions", true),
	}
}
