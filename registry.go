package match

import (
	"bytes"
	"sort"
)

// Asset is a listed token and the reservoir that custodies it.
type Asset struct {
	Symbol    Symbol
	Reservoir Reservoir
	Decimals  int32 // display only
}

// AssetRegistry maps symbols to reservoirs. Assets are permanent once listed.
// The registry is owned by the engine loop and is not safe for concurrent use.
type AssetRegistry struct {
	reference Symbol
	assets    map[Symbol]*Asset
}

// NewAssetRegistry creates a registry whose unit of account is reference.
// The reference asset still has to be registered before it can be deposited.
func NewAssetRegistry(reference Symbol) *AssetRegistry {
	return &AssetRegistry{
		reference: reference,
		assets:    make(map[Symbol]*Asset),
	}
}

// Register lists a new asset.
func (r *AssetRegistry) Register(symbol Symbol, reservoir Reservoir, decimals int32) error {
	if symbol.IsZero() {
		return ErrInvalidSymbol
	}
	if reservoir == nil || decimals < 0 {
		return ErrInvalidParam
	}
	if _, ok := r.assets[symbol]; ok {
		return ErrAlreadyRegistered
	}

	r.assets[symbol] = &Asset{
		Symbol:    symbol,
		Reservoir: reservoir,
		Decimals:  decimals,
	}
	return nil
}

// Resolve returns the asset listed under symbol.
func (r *AssetRegistry) Resolve(symbol Symbol) (*Asset, error) {
	asset, ok := r.assets[symbol]
	if !ok {
		return nil, ErrUnknownAsset
	}
	return asset, nil
}

// Reference returns the unit-of-account symbol.
func (r *AssetRegistry) Reference() Symbol {
	return r.reference
}

func (r *AssetRegistry) IsReference(symbol Symbol) bool {
	return symbol == r.reference
}

// Tradable resolves symbol and rejects the reference asset. The reference
// check comes first so it holds even before the reference asset is listed.
func (r *AssetRegistry) Tradable(symbol Symbol) (*Asset, error) {
	if r.IsReference(symbol) {
		return nil, ErrCannotTradeReferenceAsset
	}
	return r.Resolve(symbol)
}

// Assets returns all listed assets sorted by symbol.
func (r *AssetRegistry) Assets() []*Asset {
	list := make([]*Asset, 0, len(r.assets))
	for _, a := range r.assets {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		return bytes.Compare(list[i].Symbol[:], list[j].Symbol[:]) < 0
	})
	return list
}
