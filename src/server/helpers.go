package server

import (
	"fmt"

	"market-sync/src/models"

	"github.com/gin-gonic/gin"
)

const defaultNoticeLimit = 20

// -----------------------------------------------------------------------------

func errorBody(format string, args ...interface{}) gin.H {
	return gin.H{"error": fmt.Sprintf(format, args...)}
}

// -----------------------------------------------------------------------------

type timeFrameOption struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Seconds int64  `json:"seconds"`
}

// timeFrameOptions lists every time frame in ascending order, for pickers.
func timeFrameOptions() []timeFrameOption {
	all := models.AllTimeFrames()
	out := make([]timeFrameOption, 0, len(all))
	for _, tf := range all {
		out = append(out, timeFrameOption{
			Name:    tf.String(),
			Symbol:  tf.Symbol(),
			Seconds: int64(tf.Duration().Seconds()),
		})
	}
	return out
}

// -----------------------------------------------------------------------------

type indicatorOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func indicatorOptions() []indicatorOption {
	tags := models.AllIndicatorTags()
	out := make([]indicatorOption, 0, len(tags))
	for _, t := range tags {
		out = append(out, indicatorOption{Key: t.Key(), Label: t.Label()})
	}
	return out
}
