package validators

import "go.mongodb.org/mongo-driver/bson"

var VehicleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"number",
			"name",
			"price_per_day",
			"included_km_per_day",
			"locations",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 32,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"price_per_day": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"included_km_per_day": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"locations": bson.M{
				"bsonType":    "array",
				"minItems":    1,
				"maxItems":    50,
				"uniqueItems": true,
				"items": bson.M{
					"bsonType":  "string",
					"minLength": 1,
					"maxLength": 100,
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
