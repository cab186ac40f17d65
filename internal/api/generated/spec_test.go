package generated

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestGetSwagger_Valid(t *testing.T) {
	swagger, err := GetSwagger()
	if err != nil {
		t.Fatalf("GetSwagger: %v", err)
	}
	if err := swagger.Validate(context.Background()); err != nil {
		t.Fatalf("openapi.yaml невалиден: %v", err)
	}
	if swagger.Paths.Len() == 0 {
		t.Fatal("нет ни одного пути")
	}
}

// Каждый маршрут HandlerWithOptions описан в openapi.yaml и наоборот.
func TestRoutesMatchSpec(t *testing.T) {
	swagger, err := GetSwagger()
	if err != nil {
		t.Fatalf("GetSwagger: %v", err)
	}

	router := chi.NewRouter()
	HandlerFromMux(nil, router)

	routes := map[string]bool{}
	err = chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes[method+" "+route] = true
		if item := swagger.Paths.Value(route); item == nil || item.GetOperation(method) == nil {
			t.Errorf("%s %s отсутствует в openapi.yaml", method, route)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("chi.Walk: %v", err)
	}

	for path, item := range swagger.Paths.Map() {
		for method := range item.Operations() {
			if !routes[strings.ToUpper(method)+" "+path] {
				t.Errorf("%s %s не зарегистрирован в роутере", method, path)
			}
		}
	}
}
