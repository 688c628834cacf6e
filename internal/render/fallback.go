package render

import (
	"bufio"
	"fmt"
	"html"
	"io"

	"github.com/xenking/petshop-storefront/internal/domain/cart"
	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/navigation"
)

// Fallback builds minimal markup by hand. Every interpolated value is
// HTML-escaped.
type Fallback struct{}

// Name implements Renderer.
func (Fallback) Name() string { return "fallback" }

// Page implements Renderer.
func (f Fallback) Page(w io.Writer, p Page) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("<!doctype html>\n<html lang=\"en\"><head><meta charset=\"utf-8\"><title>Pet Shop</title></head><body>\n")
	bw.WriteString("<header><form action=\"/api/search\" method=\"get\" role=\"search\">" +
		"<input id=\"searchInput\" name=\"q\" type=\"search\" aria-label=\"Search\"><button>Search</button></form>")
	fmt.Fprintf(bw, "<form action=\"/api/cart/open\" method=\"post\"><button id=\"cartBtn\">Cart <span id=\"cartCount\">%d</span></button></form></header>\n", p.CartCount)
	if p.Notice != "" {
		fmt.Fprintf(bw, "<div class=\"notice\" role=\"status\" style=\"white-space: pre-line\">%s</div>\n", esc(p.Notice))
	}
	bw.WriteString("<main id=\"categoryStage\">")
	writeStage(bw, p.Stage)
	bw.WriteString("</main>\n<aside id=\"cartDrawer\"><ul id=\"cartItems\">")
	for i, l := range p.Cart {
		fmt.Fprintf(bw, "<li class=\"cart-line\">%s x%d %s <form action=\"/api/cart/items/%d/delete\" method=\"post\"><button>Remove</button></form></li>",
			esc(l.Title), l.Qty, esc(cart.FormatPrice(l.Subtotal())), i)
	}
	fmt.Fprintf(bw, "</ul><div>Total: <strong id=\"cartTotal\">%s</strong></div></aside>\n", esc(p.CartTotal))
	if p.ConsentBanner {
		bw.WriteString("<div id=\"cookieConsent\">" +
			"<form action=\"/api/consent\" method=\"post\"><input type=\"hidden\" name=\"accept\" value=\"true\"><button>Accept</button></form>" +
			"<form action=\"/api/consent\" method=\"post\"><input type=\"hidden\" name=\"accept\" value=\"false\"><button>Decline</button></form>" +
			"</div>\n")
	}
	fmt.Fprintf(bw, "<footer><span id=\"serverTime\">Updated: %s</span><div class=\"footer-actions\">", esc(clock(p.Now)))
	if p.ExportLink {
		bw.WriteString("<a class=\"export-usage-link\" href=\"/api/usage/export\">Download usage CSV</a>")
	}
	bw.WriteString("</div></footer>\n</body></html>\n")
	return bw.Flush()
}

// Stage implements Renderer.
func (f Fallback) Stage(w io.Writer, st navigation.Stage) error {
	bw := bufio.NewWriter(w)
	writeStage(bw, st)
	return bw.Flush()
}

func writeStage(w *bufio.Writer, st navigation.Stage) {
	if st.View == navigation.ViewHome {
		w.WriteString("<section id=\"categoryGrid\">")
		for _, t := range st.Tiles {
			fmt.Fprintf(w, "<div class=\"cat-card\"><h3>%s</h3>", esc(t.Title))
			for _, sub := range t.Preview {
				fmt.Fprintf(w, "<form action=\"/stage/subcategory\" method=\"post\"><input type=\"hidden\" name=\"category\" value=\"%s\"><input type=\"hidden\" name=\"subcategory\" value=\"%s\"><button>%s</button></form>",
					esc(t.Title), esc(sub), esc(sub))
			}
			fmt.Fprintf(w, "<form action=\"/stage/category\" method=\"post\"><input type=\"hidden\" name=\"category\" value=\"%s\"><button>See all</button></form>", esc(t.Title))
			if t.Note != "" {
				fmt.Fprintf(w, "<div class=\"muted small\">%s</div>", esc(t.Note))
			}
			w.WriteString("</div>")
		}
		w.WriteString("</section><section id=\"prodGrid\">")
	} else {
		fmt.Fprintf(w, "<section class=\"subcategory\"><h2 class=\"subcategory-title\">%s</h2><p class=\"subcategory-desc\">%s</p><div class=\"product-list\">",
			esc(st.Heading), esc(st.Description))
	}
	for _, p := range st.Products {
		writeProduct(w, p)
	}
	if st.View == navigation.ViewHome {
		w.WriteString("</section>")
	} else {
		w.WriteString("</div></section>")
	}
}

func writeProduct(w *bufio.Writer, p catalog.Product) {
	fmt.Fprintf(w, "<article class=\"product card\" data-id=\"%s\"><div class=\"product-meta\">"+
		"<h3 class=\"product-title\">%s</h3><div class=\"product-sub muted\">%s</div>"+
		"<div class=\"price\"><strong class=\"price-value\">%s</strong></div>"+
		"<form action=\"/api/cart/items\" method=\"post\"><input type=\"hidden\" name=\"product_id\" value=\"%s\"><button class=\"add-to-cart\">Add</button></form>"+
		"</div></article>",
		esc(p.ID), esc(p.Title), esc(p.Brand), esc(cart.FormatPrice(p.Price)), esc(p.ID))
}

func esc(s string) string { return html.EscapeString(s) }
