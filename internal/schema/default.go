package schema

// defaultText is the built-in invoice extraction schema.
const defaultText = `{
  "vendor_name": {
    "description": "Legal name of the vendor/seller",
    "type": "str"
  },
  "vendor_address": {
    "description": "Complete postal address of the vendor",
    "type": "str"
  },
  "delivery_address": {
    "description": "Complete delivery address if different from billing address",
    "type": "str"
  },
  "product_names": {
    "description": "List of all product/service names in the invoice",
    "type": "List[str]"
  },
  "product_prices": {
    "description": "List of prices corresponding to each product/service",
    "type": "List[float]"
  },
  "product_quantities": {
    "description": "List of quantities corresponding to each product/service",
    "type": "List[float]"
  },
  "tax_details": {
    "description": "Tax breakdown with CGST/SGST/IGST details including rate and amount",
    "type": "Dict",
    "properties": {
      "CGST": {
        "description": "CGST tax details",
        "type": "Dict",
        "properties": {
          "percentage": {
            "description": "Tax rate percentage",
            "type": "float"
          },
          "amount": {
            "description": "Tax amount in currency",
            "type": "float"
          }
        }
      },
      "SGST": {
        "description": "SGST tax details",
        "type": "Dict",
        "properties": {
          "percentage": {
            "description": "Tax rate percentage",
            "type": "float"
          },
          "amount": {
            "description": "Tax amount in currency",
            "type": "float"
          }
        }
      },
      "IGST": {
        "description": "IGST tax details",
        "type": "Dict",
        "properties": {
          "percentage": {
            "description": "Tax rate percentage",
            "type": "float"
          },
          "amount": {
            "description": "Tax amount in currency",
            "type": "float"
          }
        }
      }
    }
  },
  "discount": {
    "description": "Discount details including percentage and amount",
    "type": "Dict",
    "properties": {
      "percentage": {
        "description": "Discount percentage",
        "type": "float"
      },
      "amount": {
        "description": "Discount amount in currency",
        "type": "float"
      }
    }
  },
  "invoice_total": {
    "description": "Final invoice amount including all taxes",
    "type": "float"
  },
  "total_before_taxes": {
    "description": "Subtotal amount before applying taxes",
    "type": "float"
  },
  "invoice_date": {
    "description": "Date of invoice issuance in DD/MM/YYYY format",
    "type": "str"
  },
  "invoice_number": {
    "description": "Unique invoice reference number",
    "type": "str"
  },
  "gst_registration_number": {
    "description": "GST identification number of the vendor",
    "type": "str"
  }
}`

// Default returns the built-in schema text, indented two spaces.
func Default() string {
	return defaultText
}

// DefaultDocument returns the built-in schema parsed. Each call returns a fresh copy.
func DefaultDocument() *Document {
	return MustParse(defaultText)
}
