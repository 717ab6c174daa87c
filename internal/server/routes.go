package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/catalogsync/internal/catalog"
	"github.com/danmuck/catalogsync/internal/delta"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ListInfo struct {
	Name    string `json:"name"`
	Handle  int    `json:"handle"`
	Entries int    `json:"entries"`
}

type EntryInfo struct {
	Index   int          `json:"index"`
	Value   string       `json:"value"`
	Payload *PayloadInfo `json:"payload,omitempty"`
}

type PayloadInfo struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

func (a *Admin) RegisterRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.Appeared).String(),
			"service": a.ID,
			"version": "0.0.1",
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router.GET("/sides", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sides": a.Sides()})
	})

	a.router.GET("/sides/:side/lists", func(c *gin.Context) {
		var lists []ListInfo
		err := a.Guard(func() error {
			m, ok := a.sides[c.Param("side")]
			if !ok {
				return ErrSideNotFound
			}
			lists = listInfos(m)
			return nil
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lists": lists})
	})

	a.router.GET("/sides/:side/lists/:name", func(c *gin.Context) {
		var entries []EntryInfo
		err := a.Guard(func() error {
			l, err := a.list(c.Param("side"), c.Param("name"))
			if err != nil {
				return err
			}
			entries = make([]EntryInfo, 0, l.Len())
			for _, e := range l.Entries() {
				entries = append(entries, entryInfo(e))
			}
			return nil
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "entries": entries})
	})

	a.router.GET("/sides/:side/lists/:name/entries/:index", func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
			return
		}
		var info EntryInfo
		err = a.Guard(func() error {
			l, err := a.list(c.Param("side"), c.Param("name"))
			if err != nil {
				return err
			}
			e, err := l.Entry(index)
			if err != nil {
				return err
			}
			info = entryInfo(e)
			return nil
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	})

	a.router.POST("/actions/:action", func(c *gin.Context) {
		out, err := a.ExecuteAction(c.Param("action"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "output": out})
	})
}

var errListNotFound = errors.New("list not found")

// list must be called under the admin lock.
func (a *Admin) list(side, name string) (*catalog.List, error) {
	m, ok := a.sides[side]
	if !ok {
		return nil, ErrSideNotFound
	}
	l, ok := m.List(name)
	if !ok {
		return nil, errListNotFound
	}
	return l, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSideNotFound),
		errors.Is(err, ErrActionNotFound),
		errors.Is(err, errListNotFound),
		errors.Is(err, catalog.ErrIndexOutOfRange):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func listInfos(m *catalog.Manager) []ListInfo {
	lists := m.Lists()
	out := make([]ListInfo, 0, len(lists))
	for _, l := range lists {
		out = append(out, ListInfo{Name: l.Name(), Handle: l.Handle(), Entries: l.Len()})
	}
	return out
}

func entryInfo(e *catalog.Entry) EntryInfo {
	info := EntryInfo{Index: e.Index(), Value: e.Value()}
	msg := e.Payload()
	if msg == nil {
		return info
	}
	s := msg.Schema()
	fields := make(map[string]any, s.Len())
	for i := 0; i < s.Len(); i++ {
		fields[s.Field(i).Name] = jsonValue(msg.Value(i))
	}
	info.Payload = &PayloadInfo{Type: s.Name(), Fields: fields}
	return info
}

func jsonValue(v delta.Value) any {
	k := v.Kind()
	switch {
	case k == delta.KindBool:
		return v.Bool()
	case k.Signed():
		return v.Int()
	case k.Unsigned():
		return v.Uint()
	case k.Float():
		return v.Float()
	case k == delta.KindString:
		return v.Text()
	case k == delta.KindBytes:
		return v.Bytes()
	default:
		return v.String()
	}
}
