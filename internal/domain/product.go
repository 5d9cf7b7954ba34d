package domain

import (
	"time"
)

// Product representa o item do catálogo (a Entidade).
// A métrica define a unidade de medida em que o produto é vendido e
// estocado: toda quantidade associada ao produto deve ser compatível.
type Product struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"` // Stock Keeping Unit (código único de produto)
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Metric      Metric    `json:"metric"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Supports verifica se uma quantidade é compatível com a métrica do produto.
// Checado uma única vez na criação da linha de pedido, depois congelado.
func (p Product) Supports(quantity Quantity) bool {
	return p.Metric.IsCompatibleWith(quantity.Metric)
}

// --- Estruturas Auxiliares (Filtros e Contexto) ---

// ProductFilter define os parâmetros de busca e paginação do catálogo.
type ProductFilter struct {
	Page       int
	Limit      int
	Name       string
	SKU        string
	ActiveOnly bool
}

// Context é uma interface que encapsula o Go context.Context.
// É usado para propagar o timeout e sinais de cancelamento pelas camadas.
// Isso evita a dependência direta do pacote "context".
type Context interface{}
