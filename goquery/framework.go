// Package goquery implements HTML inspection on top of goquery: link
// extraction, documentation framework detection and removal of site
// chrome before content extraction.
package goquery

// Framework identifies a documentation generator.
type Framework string

// Known documentation frameworks.
const (
	FrameworkUnknown    Framework = ""
	FrameworkDocusaurus Framework = "docusaurus"
	FrameworkMkDocs     Framework = "mkdocs"
	FrameworkSphinx     Framework = "sphinx"
	FrameworkVuePress   Framework = "vuepress"
	FrameworkVitePress  Framework = "vitepress"
	FrameworkGitBook    Framework = "gitbook"
	FrameworkNextra     Framework = "nextra"
)

// profile is what is known about one framework's pages.
type profile struct {
	framework Framework
	// generator is matched against <meta name="generator">.
	generator string
	// markers identify the framework when no generator tag names it.
	markers []string
	// content lists candidate content roots, best first.
	content []string
	// chrome is navigation removed before extraction.
	chrome []string
}

// profiles are checked in order. VitePress precedes VuePress because it
// still renders some VuePress class names.
var profiles = []profile{
	{
		framework: FrameworkDocusaurus,
		generator: "docusaurus",
		markers:   []string{"#__docusaurus_skipToContent_fallback", ".theme-doc-sidebar-container", "html[data-theme] [data-rh]"},
		content:   []string{"article", "main"},
		chrome:    []string{".theme-doc-sidebar-container", ".table-of-contents", ".pagination-nav", ".theme-doc-breadcrumbs", ".theme-edit-this-page"},
	},
	{
		framework: FrameworkMkDocs,
		generator: "mkdocs",
		markers:   []string{"[data-md-color-scheme]", "[data-md-component]", ".md-nav--primary"},
		content:   []string{"article.md-content__inner", ".md-content"},
		chrome:    []string{".md-sidebar", ".md-header", ".md-footer", ".md-tabs", ".headerlink"},
	},
	{
		framework: FrameworkSphinx,
		generator: "sphinx",
		markers:   []string{".toctree-wrapper", ".wy-nav-side", ".wy-menu-vertical", ".sphinxsidebar"},
		content:   []string{"[role='main']", ".document .body", ".rst-content"},
		chrome:    []string{".wy-nav-side", ".sphinxsidebar", ".related", ".rst-footer-buttons", ".headerlink", ".wy-breadcrumbs"},
	},
	{
		framework: FrameworkVitePress,
		generator: "vitepress",
		markers:   []string{"#VPContent", ".VPDoc", ".VPDocAsideOutline"},
		content:   []string{".VPDoc .vp-doc", ".VPDoc"},
		chrome:    []string{".VPSidebar", ".VPNav", ".VPDocAside", ".VPDocFooter", ".VPLocalNav"},
	},
	{
		framework: FrameworkVuePress,
		generator: "vuepress",
		markers:   []string{".theme-default-content", ".sidebar-links", ".vuepress-navbar"},
		content:   []string{".theme-default-content"},
		chrome:    []string{".sidebar", ".navbar", ".page-edit", ".page-nav"},
	},
	{
		framework: FrameworkGitBook,
		generator: "gitbook",
		// Any two of GitBook's html classes.
		markers: []string{
			"[data-testid='space.sidebar']",
			"[data-testid='page.desktopTableOfContents']",
			"html.circular-corners.theme-clean",
			"html.circular-corners.tint",
			"html.theme-clean.tint",
		},
		content: []string{"main"},
		chrome:  []string{"[data-testid='space.sidebar']", "[data-testid='page.desktopTableOfContents']", "header"},
	},
	{
		framework: FrameworkNextra,
		generator: "nextra",
		markers:   []string{".nextra-navbar", ".nextra-sidebar", ".nextra-toc"},
		content:   []string{"article", "main"},
		chrome:    []string{".nextra-sidebar-container", ".nextra-toc", ".nextra-navbar", ".nextra-breadcrumb"},
	},
}

func profileFor(f Framework) (profile, bool) {
	for _, p := range profiles {
		if p.framework == f {
			return p, true
		}
	}
	return profile{}, false
}

// genericChrome is removed from every page.
var genericChrome = []string{
	"script", "style", "noscript", "template", "svg", "iframe",
	"nav", "footer", "[role='navigation']", "[role='banner']", "[role='contentinfo']",
	"[aria-hidden='true']", ".skip-link", ".sr-only",
}
