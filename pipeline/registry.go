package pipeline

import (
	"github.com/bulkmart/go-aggregator/sources"
	"github.com/bulkmart/go-aggregator/sources/alibaba"
	"github.com/bulkmart/go-aggregator/sources/indiamart"
	"github.com/bulkmart/go-aggregator/sources/tradeindia"
	"github.com/bulkmart/go-aggregator/types"
)

// BuildRegistry wires every platform adapter against the loaded config
func BuildRegistry(appC *types.Config) sources.Registry {
	return sources.Registry{
		types.PlatformAlibaba:    alibaba.New(appC),
		types.PlatformIndiamart:  indiamart.New(appC),
		types.PlatformTradeindia: tradeindia.New(appC),
	}
}
