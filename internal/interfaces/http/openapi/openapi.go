// Package openapi serves the API description and a Swagger UI for it.
package openapi

import (
	_ "embed"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gopkg.in/yaml.v3"
)

// SpecPath is where the raw document is served
const SpecPath = "/openapi.yaml"

//go:embed openapi.yaml
var spec []byte

// Spec returns the OpenAPI document
func Spec() []byte {
	return spec
}

// Register mounts the document at SpecPath and the Swagger UI under /swagger/
func Register(engine *gin.Engine) {
	engine.GET(SpecPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", spec)
	})
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL(SpecPath),
		ginSwagger.DocExpansion("none"),
	))
}

var httpMethods = map[string]bool{"get": true, "put": true, "post": true, "delete": true, "patch": true}

// Operations lists the documented operations as "METHOD /path", sorted, with
// paths in the document's {param} form
func Operations() ([]string, error) {
	var doc struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, fmt.Errorf("openapi: parse document: %w", err)
	}

	var ops []string
	for path, item := range doc.Paths {
		for method := range item {
			if httpMethods[method] {
				ops = append(ops, strings.ToUpper(method)+" "+path)
			}
		}
	}
	sort.Strings(ops)
	return ops, nil
}
