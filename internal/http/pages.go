package http

import (
	"embed"

	"github.com/gin-gonic/gin"
)

//go:embed pages/*.html
var pagesFS embed.FS

var (
	confirmSuccessPage = mustPage("pages/confirm_success.html")
	confirmFailedPage  = mustPage("pages/confirm_failed.html")
)

func mustPage(name string) []byte {
	b, err := pagesFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return b
}

func writePage(c *gin.Context, status int, page []byte) {
	c.Data(status, "text/html; charset=utf-8", page)
}
