package validators

import "go.mongodb.org/mongo-driver/bson"

var CapacityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"car_type",
			"quantity",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"car_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"SEDAN",
					"SUV",
					"VAN",
				},
			},

			"quantity": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},
		},
	},
}
