package views

import (
	"path"
	"strings"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/session"
)

// NavItem is a navbar link.
type NavItem struct {
	Path  string
	Label string
}

// RenderedNavItem is a navbar link with its active state.
type RenderedNavItem struct {
	Href   string
	Label  string
	Active bool
}

// Crumb is a breadcrumb entry.
type Crumb struct {
	Href   string
	Label  string
	Active bool
}

// MainNav is shown to everyone.
var MainNav = []NavItem{
	{Path: "/", Label: "Newsstand"},
	{Path: "/publishers", Label: "Publishers"},
	{Path: "/publications", Label: "Publications"},
	{Path: "/about", Label: "About"},
}

// ReaderNav is added for signed-in readers.
var ReaderNav = []NavItem{
	{Path: "/wallet", Label: "Wallet"},
	{Path: "/history", Label: "History"},
	{Path: "/author/dashboard", Label: "Write"},
}

// BuildNav renders the navbar links for currentPath.
func BuildNav(currentPath string, authenticated bool, console session.Console) []RenderedNavItem {
	if currentPath == "" {
		currentPath = "/"
	}
	items := append([]NavItem{}, MainNav...)
	if authenticated {
		items = append(items, ReaderNav...)
	}
	if console.Publisher {
		items = append(items, NavItem{Path: "/publisher/console", Label: "Console"})
	}
	if console.Admin {
		items = append(items, NavItem{Path: "/admin", Label: "Admin"})
	}

	out := make([]RenderedNavItem, 0, len(items))
	for _, it := range items {
		out = append(out, RenderedNavItem{
			Href:   "#" + it.Path,
			Label:  it.Label,
			Active: isActive(it.Path, currentPath),
		})
	}
	return out
}

func isActive(itemPath, currentPath string) bool {
	if itemPath == "/" {
		return currentPath == "/"
	}
	return currentPath == itemPath || strings.HasPrefix(currentPath, itemPath+"/")
}

// Breadcrumbs builds breadcrumb entries for the console sections.
func Breadcrumbs(currentPath string) []Crumb {
	if currentPath == "" {
		currentPath = "/"
	}
	crumbs := []Crumb{{Href: "#/", Label: "Home", Active: currentPath == "/"}}
	if currentPath == "/" {
		return crumbs
	}

	clean := path.Clean(currentPath)
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	href := ""
	for i, part := range parts {
		if part == "" {
			continue
		}
		href += "/" + part
		crumbs = append(crumbs, Crumb{
			Href:   "#" + href,
			Label:  titleFromSegment(part),
			Active: i == len(parts)-1,
		})
	}
	return crumbs
}

func titleFromSegment(seg string) string {
	if seg == "" {
		return seg
	}
	s := strings.ReplaceAll(seg, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}
