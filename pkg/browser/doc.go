// Package browser owns the browser session of a running story.
//
// A Provider binds at most one Driver at a time. The runner creates one
// Provider per story and hands it to the goroutine executing that story, so
// a session is never shared between stories:
//
//	p := browser.NewProvider(launchers, browser.WithRasterizer(pw))
//	if err := p.Launch(browser.ChromeHeadless); err != nil {
//	    return err // *LaunchError, the story cannot run
//	}
//	defer p.End()
//
// Drivers come from Launchers: PlaywrightLauncher backs the chromium,
// firefox, webkit and remote kinds, TextLauncher backs HTMLUnit. HTMLUnit
// cannot screenshot, so the Provider renders its page source through a
// Rasterizer instead.
//
// Diagnostic operations (CaptureScreenshot, CaptureHTML, DescribeSession)
// are used after a scenario fails. Capture errors are *CaptureError values;
// DescribeSession never fails.
package browser
